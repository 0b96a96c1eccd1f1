package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/repository"
	"github.com/noah-isme/tutoring-center-api/pkg/config"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
	"github.com/noah-isme/tutoring-center-api/pkg/export"
)

type renewalStore interface {
	ListRegularPaid(ctx context.Context) ([]models.Enrollment, error)
	CountsByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]repository.SessionCounts, error)
	PaymentStatusByIDs(ctx context.Context, ids []string) (map[string]models.PaymentStatus, error)
}

type renewalCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RenewalService derives the renewal tracker report. The report is an
// informational projection; scheduling validation never consults it, so an
// extended enrollment falling outside the window cannot affect bookings.
type RenewalService struct {
	repo      renewalStore
	calendars calendarProvider
	cache     renewalCache
	cfg       config.RenewalsConfig
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
	now       func() time.Time
}

// NewRenewalService constructs RenewalService.
func NewRenewalService(repo renewalStore, calendars calendarProvider, cache renewalCache, cfg config.RenewalsConfig, logger *zap.Logger) *RenewalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenewalService{
		repo:      repo,
		calendars: calendars,
		cache:     cache,
		cfg:       cfg,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *RenewalService) window(w models.RenewalWindow) models.RenewalWindow {
	if w.LookbackDays <= 0 {
		w.LookbackDays = s.cfg.DefaultLookbackDays
	}
	if w.LookaheadDays <= 0 {
		w.LookaheadDays = s.cfg.DefaultLookaheadDays
	}
	return w
}

func stageFor(successorID *string, payments map[string]models.PaymentStatus) models.RenewalStage {
	if successorID == nil {
		return models.RenewalStageNone
	}
	if payments[*successorID] == models.PaymentStatusPaid {
		return models.RenewalStagePaid
	}
	return models.RenewalStageAwaitingPayment
}

// Report builds the renewal tracker for every regular paid enrollment whose
// effective end date falls inside the window. Window filtering happens here,
// after the deadline computation, never inside the storage query.
func (s *RenewalService) Report(ctx context.Context, win models.RenewalWindow) ([]models.RenewalEntry, error) {
	win = s.window(win)
	today := DateOnly(s.now().UTC())
	from := today.AddDate(0, 0, -win.LookbackDays)
	to := today.AddDate(0, 0, win.LookaheadDays)

	cacheKey := fmt.Sprintf("renewals:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if s.cache != nil {
		var cached []models.RenewalEntry
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("renewal cache read failed", zap.Error(err))
		}
	}

	enrollments, err := s.repo.ListRegularPaid(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	if len(enrollments) == 0 {
		return []models.RenewalEntry{}, nil
	}

	var candidates []models.Enrollment
	ends := make(map[string]time.Time, len(enrollments))
	for _, e := range enrollments {
		calendar, err := s.calendars.CalendarSpanning(ctx, e.StartDate, e.LessonsPaid+e.ExtensionWeeks)
		if err != nil {
			return nil, err
		}
		end, err := EffectiveEndDate(calendar, e.StartDate, e.WeeklyDay, e.LessonsPaid+e.ExtensionWeeks)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute effective end date")
		}
		if end.Before(from) || end.After(to) {
			continue
		}
		ends[e.ID] = end
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return []models.RenewalEntry{}, nil
	}

	ids := make([]string, 0, len(candidates))
	var successorIDs []string
	for _, e := range candidates {
		ids = append(ids, e.ID)
		if e.RenewedToID != nil {
			successorIDs = append(successorIDs, *e.RenewedToID)
		}
	}

	counts, err := s.repo.CountsByEnrollments(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}
	payments := map[string]models.PaymentStatus{}
	if len(successorIDs) > 0 {
		payments, err = s.repo.PaymentStatusByIDs(ctx, successorIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load successor payments")
		}
	}

	entries := make([]models.RenewalEntry, 0, len(candidates))
	for _, e := range candidates {
		c := counts[e.ID]
		entries = append(entries, models.RenewalEntry{
			EnrollmentID:      e.ID,
			StudentID:         e.StudentID,
			TutorID:           e.TutorID,
			StartDate:         e.StartDate,
			LessonsPaid:       e.LessonsPaid,
			ExtensionWeeks:    e.ExtensionWeeks,
			EffectiveEndDate:  ends[e.ID],
			SessionsCompleted: c.Completed,
			PendingMakeups:    c.PendingMakeups,
			Stage:             stageFor(e.RenewedToID, payments),
			SuccessorID:       e.RenewedToID,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].EffectiveEndDate.Before(entries[j].EffectiveEndDate)
	})

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, entries, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("renewal cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

var renewalHeaders = []string{
	"enrollment_id", "student_id", "tutor_id", "start_date", "lessons_paid",
	"extension_weeks", "effective_end_date", "sessions_completed",
	"pending_makeups", "stage", "successor_id",
}

func renewalDataset(entries []models.RenewalEntry) export.Dataset {
	rows := make([]map[string]string, len(entries))
	for i, e := range entries {
		successor := ""
		if e.SuccessorID != nil {
			successor = *e.SuccessorID
		}
		rows[i] = map[string]string{
			"enrollment_id":      e.EnrollmentID,
			"student_id":         e.StudentID,
			"tutor_id":           e.TutorID,
			"start_date":         e.StartDate.Format("2006-01-02"),
			"lessons_paid":       strconv.Itoa(e.LessonsPaid),
			"extension_weeks":    strconv.Itoa(e.ExtensionWeeks),
			"effective_end_date": e.EffectiveEndDate.Format("2006-01-02"),
			"sessions_completed": strconv.Itoa(e.SessionsCompleted),
			"pending_makeups":    strconv.Itoa(e.PendingMakeups),
			"stage":              string(e.Stage),
			"successor_id":       successor,
		}
	}
	return export.Dataset{Headers: renewalHeaders, Rows: rows}
}

// Export renders the report as a downloadable file.
func (s *RenewalService) Export(ctx context.Context, win models.RenewalWindow, format string) ([]byte, string, error) {
	entries, err := s.Report(ctx, win)
	if err != nil {
		return nil, "", err
	}
	dataset := renewalDataset(entries)
	switch format {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Renewal Tracker")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	}
	return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
}
