package diagnosis

import (
	"fmt"
	"strings"

	"github.com/0xlajaz/xandeum-nexus/internal/models"
	"github.com/0xlajaz/xandeum-nexus/internal/scoring"
)

const (
	mb = 1024 * 1024

	criticalUptimeSec = 30 * 60      // rapid restarts below 30 minutes
	warningUptimeSec  = 24 * 60 * 60 // low uptime below 24 hours

	criticalStorageBytes = 50 * mb
	warningStorageBytes  = 100 * mb

	warningHitRate = 0.85
)

// Diagnoser classifies a reachable pod's condition and produces the
// human-readable issue and remediation lists alerts are built from.
type Diagnoser struct {
	scorer *scoring.Scorer
}

// New creates a diagnoser sharing the scorer's version acceptance set.
func New(scorer *scoring.Scorer) *Diagnoser {
	return &Diagnoser{scorer: scorer}
}

// Diagnose runs the independent threshold checks against one report.
// It only ever sees pods present in the snapshot; absence is handled
// upstream as OFFLINE. Calling it twice on the same report yields an
// identical verdict.
func (d *Diagnoser) Diagnose(report models.PodReport) models.Diagnosis {
	diag := models.Diagnosis{Status: models.StatusHealthy}

	if !d.scorer.VersionAccepted(report.Version) {
		diag.Issues = append(diag.Issues, models.Issue{
			Severity: models.StatusWarning,
			Category: models.IssueVersion,
			Text:     "Outdated version (not on an accepted release)",
		})
		diag.Actions = append(diag.Actions,
			"Upgrade to the latest stable release",
			"Check release notes at docs.xandeum.network")
	}

	// The uptime thresholds are mutually exclusive: only the lower one
	// fires when both would match.
	switch {
	case report.Uptime < criticalUptimeSec:
		diag.Issues = append(diag.Issues, models.Issue{
			Severity: models.StatusCritical,
			Category: models.IssueUptime,
			Text:     "Rapid restarts (uptime below 30 minutes)",
		})
		diag.Actions = append(diag.Actions,
			"Check logs immediately: docker logs <container>",
			"Verify resource availability (RAM/disk)",
			"Review recent configuration changes")
	case report.Uptime < warningUptimeSec:
		diag.Issues = append(diag.Issues, models.Issue{
			Severity: models.StatusWarning,
			Category: models.IssueUptime,
			Text:     "Low uptime (below 24 hours)",
		})
		diag.Actions = append(diag.Actions,
			"Monitor stability over the next few hours",
			"Consider systemd or Docker restart policies")
	}

	switch {
	case report.StorageCommitted < criticalStorageBytes:
		diag.Issues = append(diag.Issues, models.Issue{
			Severity: models.StatusCritical,
			Category: models.IssueStorage,
			Text:     "No storage committed",
		})
		diag.Actions = append(diag.Actions,
			"Verify the storage section of the pod config",
			"Ensure the storage path is valid and writable",
			"Minimum recommended: 100MB (0.1 GB)")
	case report.StorageCommitted < warningStorageBytes:
		diag.Issues = append(diag.Issues, models.Issue{
			Severity: models.StatusWarning,
			Category: models.IssueStorage,
			Text:     "Low storage (below 100 MB)",
		})
		diag.Actions = append(diag.Actions,
			"Increase committed storage to at least 100 MB")
	}

	if report.PagingHitRate < warningHitRate {
		diag.Issues = append(diag.Issues, models.Issue{
			Severity: models.StatusWarning,
			Category: models.IssueGeneral,
			Text:     fmt.Sprintf("Low paging efficiency (%.0f%% hit rate)", report.PagingHitRate*100),
		})
		diag.Actions = append(diag.Actions,
			"Review cache configuration",
			"Consider increasing cache size if RAM is available")
	}

	if len(diag.Issues) == 0 {
		return diag
	}

	diag.Status = models.StatusWarning
	for _, iss := range diag.Issues {
		if iss.Severity == models.StatusCritical {
			diag.Status = models.StatusCritical
			break
		}
	}
	return diag
}

// IssueText joins the issue descriptions for message rendering.
func IssueText(d models.Diagnosis) string {
	lines := make([]string, 0, len(d.Issues))
	for _, iss := range d.Issues {
		lines = append(lines, "• "+iss.Text)
	}
	return strings.Join(lines, "\n")
}

// ActionText joins the remediation list for message rendering.
func ActionText(d models.Diagnosis) string {
	lines := make([]string, 0, len(d.Actions))
	for _, a := range d.Actions {
		lines = append(lines, "• "+a)
	}
	return strings.Join(lines, "\n")
}
