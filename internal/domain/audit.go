package domain

import "time"

// CountCorrection records one term whose stored count drifted.
type CountCorrection struct {
	TermID   int64  `json:"term_id"`
	Name     string `json:"name"`
	Taxonomy string `json:"taxonomy"`
	Stored   int64  `json:"stored"`
	Actual   int64  `json:"actual"`
}

// AuditProgress is reported after every term the audit visits.
type AuditProgress struct {
	Done        int `json:"done"`
	Total       int `json:"total"`
	Corrections int `json:"corrections"`
}

// AuditResult summarises a committed audit pass.
type AuditResult struct {
	Checked     int               `json:"checked"`
	Corrections []CountCorrection `json:"corrections"`
}

// AuditState is the lifecycle state of an audit job.
type AuditState string

// Audit job states.
const (
	AuditIdle      AuditState = "idle"
	AuditRunning   AuditState = "running"
	AuditCompleted AuditState = "completed"
	AuditCancelled AuditState = "cancelled"
	AuditFailed    AuditState = "failed"
)

// AuditJob is a snapshot of the current or last audit.
type AuditJob struct {
	ID         string        `json:"id"`
	State      AuditState    `json:"state"`
	Trigger    string        `json:"trigger"` // api, schedule, cli
	Progress   AuditProgress `json:"progress"`
	Result     *AuditResult  `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}
