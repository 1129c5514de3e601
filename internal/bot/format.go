package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/diagnosis"
	"github.com/0xlajaz/xandeum-nexus/internal/models"
)

func shortID(pubkey string) string {
	if len(pubkey) <= 12 {
		return pubkey
	}
	return pubkey[:6] + "..." + pubkey[len(pubkey)-4:]
}

// formatUptime renders seconds as "3d 7h" / "5h 12m" / "45m".
func formatUptime(seconds float64) string {
	d := time.Duration(seconds) * time.Second
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

// formatStorage renders bytes with a sensible unit.
func formatStorage(bytes float64) string {
	const (
		mb = 1024 * 1024
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", bytes/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", bytes/mb)
	default:
		return fmt.Sprintf("%.0f KB", bytes/1024)
	}
}

func healthEmoji(score int) string {
	switch {
	case score >= 80:
		return "🟢"
	case score >= 50:
		return "🟡"
	default:
		return "🔴"
	}
}

func severityEmoji(status models.Status) string {
	switch status {
	case models.StatusCritical, models.StatusOffline:
		return "🚨"
	case models.StatusWarning:
		return "⚠️"
	default:
		return "✅"
	}
}

func formatOfflineAlert(a models.OfflineAlert) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🚨 *Pod OFFLINE*: `%s`\n\n", shortID(a.Pubkey)))
	sb.WriteString(fmt.Sprintf("No seed peer has seen this pod for %d consecutive checks.\n", a.Strikes))
	if a.DownForMin > 0 {
		sb.WriteString(fmt.Sprintf("Down for at least *%d minutes* since the last alert.\n", a.DownForMin))
	}
	sb.WriteString("\nCheck that the pod process is running and port 6000 is reachable.")
	return sb.String()
}

func formatHealthAlert(a models.HealthAlert) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *Pod %s*: `%s`\n\n", severityEmoji(a.Diagnosis.Status), a.Diagnosis.Status, shortID(a.Pubkey)))
	sb.WriteString(fmt.Sprintf("%s Health score: *%d/100*\n\n", healthEmoji(a.Score.Total), a.Score.Total))
	sb.WriteString("*Issues:*\n")
	sb.WriteString(diagnosis.IssueText(a.Diagnosis))
	if len(a.Diagnosis.Actions) > 0 {
		sb.WriteString("\n\n*Suggested actions:*\n")
		sb.WriteString(diagnosis.ActionText(a.Diagnosis))
	}
	return sb.String()
}

func formatRecovery(n models.RecoveryNotification) string {
	return fmt.Sprintf("🎉 *Pod recovered*: `%s`\n\nThe %s issue has cleared. Health score is back to *%d/100*.",
		shortID(n.Pubkey), n.Category, n.Score.Total)
}

// formatNodeDetail renders the full /check card for one pod.
func formatNodeDetail(report models.PodReport, score models.ScoreResult, diag models.Diagnosis) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *Pod* `%s`\n\n", severityEmoji(diag.Status), shortID(report.Pubkey)))
	sb.WriteString(fmt.Sprintf("%s *Health: %d/100* (%s)\n\n", healthEmoji(score.Total), score.Total, diag.Status))

	sb.WriteString(fmt.Sprintf("• Version: `%s`\n", report.Version))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", formatUptime(report.Uptime)))
	sb.WriteString(fmt.Sprintf("• Storage committed: %s\n", formatStorage(report.StorageCommitted)))
	sb.WriteString(fmt.Sprintf("• Paging hit rate: %.1f%%\n", report.PagingHitRate*100))
	sb.WriteString(fmt.Sprintf("• Latency: %.0fms\n", report.ReportingLatency))
	sb.WriteString(fmt.Sprintf("• Seen by %d peer(s)\n", report.WitnessCount))

	sb.WriteString(fmt.Sprintf("\n*Score breakdown:* version %d/40, uptime %d/30, storage %d/20, paging %d/10\n",
		score.Breakdown.Version, score.Breakdown.Uptime, score.Breakdown.Storage, score.Breakdown.Paging))

	if len(diag.Issues) > 0 {
		sb.WriteString("\n*Issues:*\n")
		sb.WriteString(diagnosis.IssueText(diag))
		if len(diag.Actions) > 0 {
			sb.WriteString("\n\n*Suggested actions:*\n")
			sb.WriteString(diagnosis.ActionText(diag))
		}
	}
	return sb.String()
}

func formatNetworkStats(stats models.NetworkStats, asOf int64) string {
	var sb strings.Builder
	sb.WriteString("📊 *Xandeum Network Overview*\n\n")
	sb.WriteString(fmt.Sprintf("• Pods online: *%d*\n", stats.TotalNodes))
	sb.WriteString(fmt.Sprintf("• Average health: *%.1f/100*\n", stats.AvgHealth))
	sb.WriteString(fmt.Sprintf("• Total committed storage: *%.2f GB*\n", stats.TotalStorageGB))
	sb.WriteString(fmt.Sprintf("• Version compliant: *%d/%d*\n", stats.CompliantNodes, stats.TotalNodes))
	sb.WriteString(fmt.Sprintf("• Average paging efficiency: *%.1f%%*\n", stats.AvgPagingEfficiency*100))
	if asOf > 0 {
		sb.WriteString(fmt.Sprintf("\n_As of %s_", time.Unix(asOf, 0).UTC().Format("15:04:05 UTC")))
	}
	return sb.String()
}
