package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/VipuDevAI/prashnakosh-api/internal/models"
	"github.com/VipuDevAI/prashnakosh-api/pkg/config"

	appErrors "github.com/VipuDevAI/prashnakosh-api/pkg/errors"
)

// AttemptWindowReader supplies attempt history for analytics.
type AttemptWindowReader interface {
	ListWindow(ctx context.Context, filter models.AttemptFilter) ([]models.Attempt, error)
}

// StudentDirectory supplies student display data and counts.
type StudentDirectory interface {
	StudentRefs(ctx context.Context, ids []string) (map[string]models.StudentRef, error)
	CountStudents(ctx context.Context, schoolID string) (int, error)
}

// AnalyticsCache caches computed analytics payloads.
type AnalyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RiskService derives every risk classification from the attempt window at
// query time. Nothing here is stored: the same window and thresholds always
// yield the same answer, and threshold changes apply retroactively on the
// next read.
type RiskService struct {
	attempts  AttemptWindowReader
	students  StudentDirectory
	cache     AnalyticsCache
	scope     *ScopeService
	metrics   *MetricsService
	risk      config.RiskConfig
	analytics config.AnalyticsConfig
	logger    *zap.Logger
	clock     func() time.Time
}

// NewRiskService constructs a risk analytics service.
func NewRiskService(attempts AttemptWindowReader, students StudentDirectory, cache AnalyticsCache, scope *ScopeService, risk config.RiskConfig, analytics config.AnalyticsConfig, logger *zap.Logger) *RiskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskService{
		attempts:  attempts,
		students:  students,
		cache:     cache,
		scope:     scope,
		risk:      risk,
		analytics: analytics,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// SetMetrics attaches cache instrumentation.
func (s *RiskService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// AtRiskStudents returns students with at least the configured number of
// failed attempts inside the window, sorted worst first.
func (s *RiskService) AtRiskStudents(ctx context.Context, claims *models.JWTClaims, school string, windowDays int) ([]models.AtRiskStudent, error) {
	if err := s.guard(claims); err != nil {
		return nil, err
	}
	windowDays = s.window(windowDays)

	key := fmt.Sprintf("analytics:at_risk:%s:%d", school, windowDays)
	var cached []models.AtRiskStudent
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	attempts, err := s.windowAttempts(ctx, school, windowDays)
	if err != nil {
		return nil, err
	}
	result := s.computeAtRisk(ctx, attempts)
	s.cacheSet(ctx, key, result)
	return result, nil
}

// Alerts derives behavioural alerts from the window: tab switching within a
// single sitting, repeated absence flags, and scores falling well below the
// student's running average.
func (s *RiskService) Alerts(ctx context.Context, claims *models.JWTClaims, school string, windowDays int) ([]models.RiskAlert, error) {
	if err := s.guard(claims); err != nil {
		return nil, err
	}
	windowDays = s.window(windowDays)

	key := fmt.Sprintf("analytics:alerts:%s:%d", school, windowDays)
	var cached []models.RiskAlert
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	attempts, err := s.windowAttempts(ctx, school, windowDays)
	if err != nil {
		return nil, err
	}
	result := s.computeAlerts(ctx, attempts)
	s.cacheSet(ctx, key, result)
	return result, nil
}

// GradePerformance aggregates the window by grade.
func (s *RiskService) GradePerformance(ctx context.Context, claims *models.JWTClaims, school string, windowDays int) ([]models.GradePerformance, error) {
	if err := s.guard(claims); err != nil {
		return nil, err
	}
	windowDays = s.window(windowDays)

	key := fmt.Sprintf("analytics:grade_perf:%s:%d", school, windowDays)
	var cached []models.GradePerformance
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	attempts, err := s.windowAttempts(ctx, school, windowDays)
	if err != nil {
		return nil, err
	}
	result := s.computeGradePerformance(attempts)
	s.cacheSet(ctx, key, result)
	return result, nil
}

// SubjectHealth aggregates the window by (subject, grade) and marks weak
// subjects.
func (s *RiskService) SubjectHealth(ctx context.Context, claims *models.JWTClaims, school string, windowDays int) ([]models.SubjectHealth, error) {
	if err := s.guard(claims); err != nil {
		return nil, err
	}
	windowDays = s.window(windowDays)

	key := fmt.Sprintf("analytics:subject_health:%s:%d", school, windowDays)
	var cached []models.SubjectHealth
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	attempts, err := s.windowAttempts(ctx, school, windowDays)
	if err != nil {
		return nil, err
	}
	result := s.computeSubjectHealth(attempts)
	s.cacheSet(ctx, key, result)
	return result, nil
}

// Snapshot returns the principal dashboard headline numbers.
func (s *RiskService) Snapshot(ctx context.Context, claims *models.JWTClaims, school string) (*models.PrincipalSnapshot, error) {
	if err := s.guard(claims); err != nil {
		return nil, err
	}

	key := "analytics:snapshot:" + school
	var cached models.PrincipalSnapshot
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	now := s.clock()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthAttempts, err := s.attempts.ListWindow(ctx, models.AttemptFilter{SchoolID: school, From: &monthStart, To: &now})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list month attempts")
	}

	windowAttempts, err := s.windowAttempts(ctx, school, s.window(0))
	if err != nil {
		return nil, err
	}

	totalStudents, err := s.students.CountStudents(ctx, school)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count students")
	}

	snapshot := &models.PrincipalSnapshot{
		TotalStudents:  totalStudents,
		TestsThisMonth: len(monthAttempts),
		AverageScore:   meanPercentage(monthAttempts),
		AtRiskCount:    len(s.computeAtRisk(ctx, windowAttempts)),
	}
	s.cacheSet(ctx, key, snapshot)
	return snapshot, nil
}

func (s *RiskService) guard(claims *models.JWTClaims) error {
	if !s.analytics.Enabled {
		return appErrors.Clone(appErrors.ErrNotFound, "analytics disabled")
	}
	if !s.scope.Can(claims.Role, CapViewAnalytics) {
		return appErrors.ErrScopeDenied
	}
	return nil
}

func (s *RiskService) window(days int) int {
	if days > 0 {
		return days
	}
	if s.analytics.WindowDays > 0 {
		return s.analytics.WindowDays
	}
	return 30
}

func (s *RiskService) windowAttempts(ctx context.Context, school string, windowDays int) ([]models.Attempt, error) {
	now := s.clock()
	from := now.AddDate(0, 0, -windowDays)
	attempts, err := s.attempts.ListWindow(ctx, models.AttemptFilter{SchoolID: school, From: &from, To: &now})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list attempt window")
	}
	return attempts, nil
}

func (s *RiskService) computeAtRisk(ctx context.Context, attempts []models.Attempt) []models.AtRiskStudent {
	byStudent := groupByStudent(attempts)

	var ids []string
	for id, rows := range byStudent {
		fails := 0
		for _, a := range rows {
			if a.Percentage < s.risk.FailThreshold {
				fails++
			}
		}
		if fails >= s.risk.AtRiskMinFails {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []models.AtRiskStudent{}
	}

	refs := s.resolveStudents(ctx, ids)

	result := make([]models.AtRiskStudent, 0, len(ids))
	for _, id := range ids {
		rows := byStudent[id]
		fails := 0
		for _, a := range rows {
			if a.Percentage < s.risk.FailThreshold {
				fails++
			}
		}
		ref := refs[id]
		result = append(result, models.AtRiskStudent{
			StudentID:     id,
			StudentName:   ref.FullName,
			Grade:         refGrade(ref, rows),
			FailedCount:   fails,
			AverageScore:  meanPercentage(rows),
			Trend:         s.trend(rows),
			TotalAttempts: len(rows),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FailedCount != result[j].FailedCount {
			return result[i].FailedCount > result[j].FailedCount
		}
		if result[i].AverageScore != result[j].AverageScore {
			return result[i].AverageScore < result[j].AverageScore
		}
		return result[i].StudentID < result[j].StudentID
	})
	return result
}

func (s *RiskService) computeAlerts(ctx context.Context, attempts []models.Attempt) []models.RiskAlert {
	byStudent := groupByStudent(attempts)

	var ids []string
	for id := range byStudent {
		ids = append(ids, id)
	}
	refs := s.resolveStudents(ctx, ids)

	var alerts []models.RiskAlert
	for id, rows := range byStudent {
		ref := refs[id]
		grade := refGrade(ref, rows)
		ordered := chronological(rows)

		// Tab switching is judged per sitting: one attempt at or over the
		// limit alerts, scattered single switches across the window do not.
		flaggedSittings, worstSwitches := 0, 0
		absences := 0
		var lastSeen, lastFlagged time.Time
		for _, a := range ordered {
			absences += a.AbsenceFlags
			if a.SubmittedAt.After(lastSeen) {
				lastSeen = a.SubmittedAt
			}
			if a.TabSwitches >= s.risk.TabSwitchLimit {
				flaggedSittings++
				lastFlagged = a.SubmittedAt
				if a.TabSwitches > worstSwitches {
					worstSwitches = a.TabSwitches
				}
			}
		}
		if flaggedSittings > 0 {
			alerts = append(alerts, models.RiskAlert{
				Type:        models.AlertTabSwitch,
				StudentID:   id,
				StudentName: ref.FullName,
				Grade:       grade,
				Detail:      fmt.Sprintf("%d tab switches in one sitting", worstSwitches),
				Count:       flaggedSittings,
				LastSeen:    lastFlagged,
			})
		}
		if absences >= s.risk.AbsenceLimit {
			alerts = append(alerts, models.RiskAlert{
				Type:        models.AlertAbsence,
				StudentID:   id,
				StudentName: ref.FullName,
				Grade:       grade,
				Detail:      fmt.Sprintf("%d absence flags in window", absences),
				Count:       absences,
				LastSeen:    lastSeen,
			})
		}

		// A sudden drop is measured against the mean of the student's prior
		// attempts, so a fall that levels off still alerts once per attempt
		// sitting below the running average by more than the delta.
		for i := 1; i < len(ordered); i++ {
			delta := meanPercentage(ordered[:i]) - ordered[i].Percentage
			if delta > s.risk.SuddenDropDelta {
				alerts = append(alerts, models.RiskAlert{
					Type:        models.AlertSuddenDrop,
					StudentID:   id,
					StudentName: ref.FullName,
					Grade:       grade,
					Detail:      fmt.Sprintf("scored %.1f points below the running average", delta),
					Count:       1,
					LastSeen:    ordered[i].SubmittedAt,
				})
			}
		}
	}

	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].LastSeen.Equal(alerts[j].LastSeen) {
			return alerts[i].LastSeen.After(alerts[j].LastSeen)
		}
		if alerts[i].StudentID != alerts[j].StudentID {
			return alerts[i].StudentID < alerts[j].StudentID
		}
		return alerts[i].Type < alerts[j].Type
	})
	if alerts == nil {
		alerts = []models.RiskAlert{}
	}
	return alerts
}

func (s *RiskService) computeGradePerformance(attempts []models.Attempt) []models.GradePerformance {
	byGrade := make(map[int][]models.Attempt)
	for _, a := range attempts {
		byGrade[a.Grade] = append(byGrade[a.Grade], a)
	}

	result := make([]models.GradePerformance, 0, len(byGrade))
	for grade, rows := range byGrade {
		passed := 0
		for _, a := range rows {
			if a.Percentage >= s.risk.FailThreshold {
				passed++
			}
		}
		result = append(result, models.GradePerformance{
			Grade:          grade,
			AverageScore:   meanPercentage(rows),
			PassPercentage: float64(passed) / float64(len(rows)) * 100,
			TotalAttempts:  len(rows),
			Trend:          s.trend(rows),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Grade < result[j].Grade })
	return result
}

func (s *RiskService) computeSubjectHealth(attempts []models.Attempt) []models.SubjectHealth {
	type key struct {
		subject string
		grade   int
	}
	groups := make(map[key][]models.Attempt)
	for _, a := range attempts {
		k := key{subject: a.Subject, grade: a.Grade}
		groups[k] = append(groups[k], a)
	}

	result := make([]models.SubjectHealth, 0, len(groups))
	for k, rows := range groups {
		passed := 0
		for _, a := range rows {
			if a.Percentage >= s.risk.FailThreshold {
				passed++
			}
		}
		mean := meanPercentage(rows)
		result = append(result, models.SubjectHealth{
			Subject:           k.subject,
			Grade:             k.grade,
			AveragePercentage: mean,
			PassPercentage:    float64(passed) / float64(len(rows)) * 100,
			TotalAttempts:     len(rows),
			Weak:              mean < s.risk.WeakSubjectThreshold,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Subject != result[j].Subject {
			return result[i].Subject < result[j].Subject
		}
		return result[i].Grade < result[j].Grade
	})
	return result
}

// trend compares the mean of the first third of the window against the last
// third. A short history (under three attempts) is always stable.
func (s *RiskService) trend(attempts []models.Attempt) models.Trend {
	ordered := chronological(attempts)
	n := len(ordered)
	if n < 3 {
		return models.TrendStable
	}
	third := n / 3
	early := meanPercentage(ordered[:third])
	late := meanPercentage(ordered[n-third:])
	switch {
	case late-early >= s.risk.TrendDelta:
		return models.TrendImproving
	case early-late >= s.risk.TrendDelta:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

func (s *RiskService) resolveStudents(ctx context.Context, ids []string) map[string]models.StudentRef {
	refs, err := s.students.StudentRefs(ctx, ids)
	if err != nil {
		// Display names are cosmetic; classifications still go out.
		s.logger.Warn("student ref lookup failed", zap.Error(err))
		return map[string]models.StudentRef{}
	}
	return refs
}

func (s *RiskService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		s.metrics.RecordCacheOperation(true)
		return true
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("analytics cache read failed", zap.String("key", key), zap.Error(err))
	}
	s.metrics.RecordCacheOperation(false)
	return false
}

func (s *RiskService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.analytics.CacheTTL); err != nil {
		s.logger.Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func groupByStudent(attempts []models.Attempt) map[string][]models.Attempt {
	byStudent := make(map[string][]models.Attempt)
	for _, a := range attempts {
		byStudent[a.StudentID] = append(byStudent[a.StudentID], a)
	}
	return byStudent
}

func chronological(attempts []models.Attempt) []models.Attempt {
	ordered := make([]models.Attempt, len(attempts))
	copy(ordered, attempts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SubmittedAt.Before(ordered[j].SubmittedAt) })
	return ordered
}

func meanPercentage(attempts []models.Attempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range attempts {
		sum += a.Percentage
	}
	return sum / float64(len(attempts))
}

func refGrade(ref models.StudentRef, rows []models.Attempt) int {
	if ref.Grade > 0 {
		return ref.Grade
	}
	if len(rows) > 0 {
		return rows[0].Grade
	}
	return 0
}
