package models

import "time"

// Trend describes the direction of a student's recent performance.
type Trend string

const (
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
	TrendImproving Trend = "improving"
)

// RiskAlertType enumerates the behavioural alerts the engine derives.
type RiskAlertType string

const (
	AlertTabSwitch  RiskAlertType = "tab_switch"
	AlertAbsence    RiskAlertType = "absence"
	AlertSuddenDrop RiskAlertType = "sudden_drop"
)

// AtRiskStudent is a derived classification, recomputed per query.
type AtRiskStudent struct {
	StudentID     string  `json:"studentId"`
	StudentName   string  `json:"studentName"`
	Grade         int     `json:"grade"`
	FailedCount   int     `json:"failedCount"`
	AverageScore  float64 `json:"averageScore"`
	Trend         Trend   `json:"trend"`
	TotalAttempts int     `json:"totalAttempts"`
}

// RiskAlert is a derived behavioural alert. Alerts are never persisted as
// events; the same window yields the same alerts.
type RiskAlert struct {
	Type        RiskAlertType `json:"type"`
	StudentID   string        `json:"studentId"`
	StudentName string        `json:"studentName"`
	Grade       int           `json:"grade"`
	Detail      string        `json:"detail"`
	Count       int           `json:"count"`
	LastSeen    time.Time     `json:"lastSeen"`
}

// GradePerformance aggregates attempts by grade.
type GradePerformance struct {
	Grade          int     `json:"grade"`
	AverageScore   float64 `json:"averageScore"`
	PassPercentage float64 `json:"passPercentage"`
	TotalAttempts  int     `json:"totalAttempts"`
	Trend          Trend   `json:"trend"`
}

// SubjectHealth aggregates attempts by (subject, grade). A subject is weak
// when its mean percentage falls below the configured threshold.
type SubjectHealth struct {
	Subject           string  `json:"subject"`
	Grade             int     `json:"grade"`
	AveragePercentage float64 `json:"averagePercentage"`
	PassPercentage    float64 `json:"passPercentage"`
	TotalAttempts     int     `json:"totalAttempts"`
	Weak              bool    `json:"weak"`
}

// PrincipalSnapshot is the dashboard headline aggregate.
type PrincipalSnapshot struct {
	TotalStudents  int     `json:"totalStudents"`
	TestsThisMonth int     `json:"testsThisMonth"`
	AverageScore   float64 `json:"averageScore"`
	AtRiskCount    int     `json:"atRiskCount"`
}

// StudentRef pairs a student id with display fields for analytics output.
type StudentRef struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Grade    int    `db:"grade" json:"grade"`
}

// AnalyticsSystemMetrics is a lightweight instrumentation snapshot.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	SweepRuns                uint64    `json:"sweep_runs"`
	SweepCompleted           uint64    `json:"sweep_completed"`
	SweepFlagged             uint64    `json:"sweep_flagged"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
