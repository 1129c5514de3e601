package diagnosis

import (
	"testing"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/models"
	"github.com/0xlajaz/xandeum-nexus/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDiagnoser() *Diagnoser {
	return New(scoring.New(&config.Config{
		AcceptedVersions: []string{"0.7", "0.8"},
		UptimePolicy:     config.UptimeNetworkMax,
		UptimeTarget:     7 * 24 * time.Hour,
		StorageTargetGB:  0.1,
	}))
}

func healthyReport() models.PodReport {
	return models.PodReport{
		Pubkey:           "pod1",
		Version:          "0.8.0",
		Uptime:           3 * 24 * 60 * 60,
		StorageCommitted: 200 * 1024 * 1024,
		PagingHitRate:    0.95,
	}
}

func categories(d models.Diagnosis) []models.IssueCategory {
	out := make([]models.IssueCategory, 0, len(d.Issues))
	for _, iss := range d.Issues {
		out = append(out, iss.Category)
	}
	return out
}

func TestDiagnoseHealthy(t *testing.T) {
	diag := testDiagnoser().Diagnose(healthyReport())
	assert.Equal(t, models.StatusHealthy, diag.Status)
	assert.Empty(t, diag.Issues)
	assert.Empty(t, diag.Actions)
}

func TestDiagnoseOutdatedVersion(t *testing.T) {
	report := healthyReport()
	report.Version = "0.6.2"

	diag := testDiagnoser().Diagnose(report)
	assert.Equal(t, models.StatusWarning, diag.Status)
	assert.Equal(t, []models.IssueCategory{models.IssueVersion}, categories(diag))
	assert.Equal(t, models.IssueVersion, diag.Category())
	assert.NotEmpty(t, diag.Actions)
}

func TestDiagnoseUptimeThresholdsAreExclusive(t *testing.T) {
	d := testDiagnoser()

	report := healthyReport()
	report.Uptime = 10 * 60 // rapid restart territory
	diag := d.Diagnose(report)
	require.Len(t, diag.Issues, 1)
	assert.Equal(t, models.StatusCritical, diag.Status)
	assert.Equal(t, models.StatusCritical, diag.Issues[0].Severity)
	assert.Equal(t, models.IssueUptime, diag.Issues[0].Category)

	report.Uptime = 5 * 60 * 60 // low but not critical
	diag = d.Diagnose(report)
	require.Len(t, diag.Issues, 1)
	assert.Equal(t, models.StatusWarning, diag.Status)
	assert.Equal(t, models.StatusWarning, diag.Issues[0].Severity)
}

func TestDiagnoseStorageThresholds(t *testing.T) {
	d := testDiagnoser()

	report := healthyReport()
	report.StorageCommitted = 10 * 1024 * 1024
	diag := d.Diagnose(report)
	assert.Equal(t, models.StatusCritical, diag.Status)
	assert.Equal(t, []models.IssueCategory{models.IssueStorage}, categories(diag))

	report.StorageCommitted = 80 * 1024 * 1024
	diag = d.Diagnose(report)
	assert.Equal(t, models.StatusWarning, diag.Status)
	assert.Equal(t, []models.IssueCategory{models.IssueStorage}, categories(diag))
}

func TestDiagnoseLowHitRate(t *testing.T) {
	report := healthyReport()
	report.PagingHitRate = 0.5

	diag := testDiagnoser().Diagnose(report)
	assert.Equal(t, models.StatusWarning, diag.Status)
	assert.Equal(t, models.IssueGeneral, diag.Category())
	assert.Contains(t, diag.Issues[0].Text, "50%")
}

func TestDiagnoseAnyCriticalEscalates(t *testing.T) {
	report := healthyReport()
	report.Version = "0.5.0"       // warning
	report.StorageCommitted = 1024 // critical

	diag := testDiagnoser().Diagnose(report)
	assert.Equal(t, models.StatusCritical, diag.Status)
	assert.Len(t, diag.Issues, 2)
}

func TestDiagnoseCategoryPriority(t *testing.T) {
	report := healthyReport()
	report.Version = "0.5.0"
	report.Uptime = 60
	report.StorageCommitted = 0
	report.PagingHitRate = 0.1

	// VERSION outranks STORAGE, UPTIME and GENERAL.
	diag := testDiagnoser().Diagnose(report)
	assert.Equal(t, models.IssueVersion, diag.Category())

	report.Version = "0.8.0"
	diag = testDiagnoser().Diagnose(report)
	assert.Equal(t, models.IssueStorage, diag.Category())
}

func TestDiagnoseIsIdempotent(t *testing.T) {
	d := testDiagnoser()
	report := healthyReport()
	report.Uptime = 60

	first := d.Diagnose(report)
	second := d.Diagnose(report)
	assert.Equal(t, first, second)
}

func TestIssueAndActionText(t *testing.T) {
	report := healthyReport()
	report.Version = "0.5.0"

	diag := testDiagnoser().Diagnose(report)
	assert.Contains(t, IssueText(diag), "• Outdated version")
	assert.Contains(t, ActionText(diag), "• Upgrade")
}
