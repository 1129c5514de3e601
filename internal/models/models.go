package models

// PodReport is one seed peer's observation of one pod at one instant.
// Reports are created fresh each polling cycle and never mutated after
// construction.
type PodReport struct {
	Pubkey            string  `json:"pubkey"`
	Address           string  `json:"address"`
	Version           string  `json:"version"`
	Uptime            float64 `json:"uptime"`            // seconds
	StorageCommitted  float64 `json:"storage_committed"` // bytes
	StorageUsed       float64 `json:"storage_used"`      // bytes
	PagingHitRate     float64 `json:"paging_hit_rate"`   // 0..1
	ReplicationFactor int     `json:"replication_factor"`

	// Stamped by the peer client, not part of the wire payload.
	ReportingLatency float64 `json:"reportingLatency"` // ms
	SourcePeer       string  `json:"sourcePeer"`
	WitnessCount     int     `json:"witnessCount"`
}

// Normalize clamps fields that peers occasionally report out of range.
func (p *PodReport) Normalize() {
	if p.Uptime < 0 {
		p.Uptime = 0
	}
	if p.PagingHitRate < 0 {
		p.PagingHitRate = 0
	} else if p.PagingHitRate > 1 {
		p.PagingHitRate = 1
	}
	if p.StorageCommitted < 0 {
		p.StorageCommitted = 0
	}
	if p.StorageUsed < 0 {
		p.StorageUsed = 0
	}
}

// NetworkSnapshot is the aggregator's deduplicated view of the network
// for a single polling cycle. Exactly one report per pubkey; rebuilt
// from scratch every cycle.
type NetworkSnapshot struct {
	Nodes          map[string]PodReport `json:"nodes"`
	MaxUptime      float64              `json:"maxUptime"`
	TotalReports   int                  `json:"totalReports"`
	ReachablePeers int                  `json:"reachablePeers"`
	Timestamp      int64                `json:"timestamp"`
}

// Lookup returns the winning report for a pubkey, if any peer saw it
// this cycle. Absence is the system's definition of "offline".
func (s *NetworkSnapshot) Lookup(pubkey string) (PodReport, bool) {
	n, ok := s.Nodes[pubkey]
	return n, ok
}

// Suspect reports whether the cycle produced fewer identities than the
// safety floor, which usually means a network-wide outage rather than
// actual node failures.
func (s *NetworkSnapshot) Suspect(floor int) bool {
	return len(s.Nodes) < floor
}

// ScoreBreakdown holds the four independently capped score components.
type ScoreBreakdown struct {
	Version int `json:"v_compliance"`       // 0..40
	Uptime  int `json:"uptime_reliability"` // 0..30
	Storage int `json:"storage_weight"`     // 0..20
	Paging  int `json:"paging_efficiency"`  // 0..10
}

// ScoreResult is the derived health score for one pod. Purely a
// function of (report, snapshot context); never stored.
type ScoreResult struct {
	Total     int            `json:"total"` // 0..100
	Breakdown ScoreBreakdown `json:"breakdown"`
	HitRate   float64        `json:"hitRate"`
	LatencyMS float64        `json:"latencyMs"`
}

// Status classifies a pod's condition.
type Status string

const (
	StatusHealthy  Status = "HEALTHY"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
	StatusOffline  Status = "OFFLINE"
)

// IssueCategory is the structured tag the alert engine keys cooldowns
// and mutes on. A pod can have several simultaneous issues but alerts
// are rate limited per single category.
type IssueCategory string

const (
	IssueVersion IssueCategory = "VERSION"
	IssueStorage IssueCategory = "STORAGE"
	IssueUptime  IssueCategory = "UPTIME"
	IssueOffline IssueCategory = "OFFLINE"
	IssueGeneral IssueCategory = "GENERAL"
)

// CategoryPriority is the fixed order used when a diagnosis contains
// multiple issues: the first category present wins.
var CategoryPriority = []IssueCategory{IssueVersion, IssueStorage, IssueUptime, IssueOffline, IssueGeneral}

// Issue is a single finding from the diagnoser.
type Issue struct {
	Severity Status        `json:"severity"` // WARNING or CRITICAL
	Category IssueCategory `json:"category"`
	Text     string        `json:"text"`
}

// Diagnosis is the diagnoser's verdict for a pod present in the
// snapshot. Offline pods never reach the diagnoser.
type Diagnosis struct {
	Status  Status   `json:"status"`
	Issues  []Issue  `json:"issues"`
	Actions []string `json:"actions"`
}

// Category returns the single issue category representing this
// diagnosis, picked by fixed priority.
func (d *Diagnosis) Category() IssueCategory {
	for _, cat := range CategoryPriority {
		for _, iss := range d.Issues {
			if iss.Category == cat {
				return cat
			}
		}
	}
	return IssueGeneral
}

// OfflineAlert notifies a subscriber that a watched pod has been
// unreachable for at least the confirmation window.
type OfflineAlert struct {
	Subscriber string
	Pubkey     string
	Strikes    int
	DownForMin int // minutes since the previous alert, 0 on the first
}

// HealthAlert notifies a subscriber about a degraded but reachable pod.
type HealthAlert struct {
	Subscriber string
	Pubkey     string
	Category   IssueCategory
	Score      ScoreResult
	Diagnosis  Diagnosis
	Report     PodReport
}

// RecoveryNotification closes an alert episode.
type RecoveryNotification struct {
	Subscriber string
	Pubkey     string
	Category   IssueCategory
	Score      ScoreResult
	Report     PodReport
}

// HistoryRecord is one network-wide summary row persisted per cycle.
type HistoryRecord struct {
	Timestamp           float64 `json:"timestamp"`
	TotalNodes          int     `json:"totalNodes"`
	AvgHealth           float64 `json:"avgHealth"`
	TotalStorageGB      float64 `json:"totalStorageGb"`
	AvgPagingEfficiency float64 `json:"avgPagingEfficiency"`
}

// NodeSummary is the processed per-pod row served by the dashboard API.
type NodeSummary struct {
	Pubkey      string         `json:"pubkey"`
	ShortID     string         `json:"short_id"`
	IP          string         `json:"ip"`
	Location    string         `json:"location"`
	Version     string         `json:"version"`
	UptimeSec   float64        `json:"uptime_sec"`
	StorageGB   float64        `json:"storage_gb"`
	HealthScore int            `json:"health_score"`
	Breakdown   ScoreBreakdown `json:"score_breakdown"`
	LatencyMS   float64        `json:"latency_ms"`
	Witnesses   int            `json:"witnesses"`
	Credits     int            `json:"credits"`
}

// NetworkStats are the network-wide KPIs computed per telemetry request.
type NetworkStats struct {
	TotalNodes          int     `json:"total_nodes"`
	TotalStorageGB      float64 `json:"total_storage_gb"`
	AvgHealth           float64 `json:"avg_health"`
	CompliantNodes      int     `json:"compliant_nodes"`
	AvgPagingEfficiency float64 `json:"avg_paging_efficiency"`
}

// APIResponse is the standard HTTP envelope.
type APIResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp int64             `json:"timestamp"`
}
