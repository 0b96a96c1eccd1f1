package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/repository"
	"github.com/noah-isme/tutoring-center-api/pkg/config"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
)

// Calendar is a preloaded holiday set with O(1) lookups. The zero value is an
// empty calendar.
type Calendar struct {
	days map[string]struct{}
}

// NewCalendar builds a calendar from a list of dates.
func NewCalendar(dates []time.Time) *Calendar {
	days := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		days[DateOnly(d).Format("2006-01-02")] = struct{}{}
	}
	return &Calendar{days: days}
}

// IsHoliday implements HolidayChecker.
func (c *Calendar) IsHoliday(date time.Time) bool {
	if c == nil || c.days == nil {
		return false
	}
	_, ok := c.days[DateOnly(date).Format("2006-01-02")]
	return ok
}

type holidayStore interface {
	List(ctx context.Context, filter models.HolidayFilter) ([]models.Holiday, error)
	DatesBetween(ctx context.Context, from, to time.Time) ([]time.Time, error)
	Create(ctx context.Context, holiday *models.Holiday) error
	Delete(ctx context.Context, id string) (bool, error)
}

type calendarCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateHolidayRequest describes the holiday creation payload.
type CreateHolidayRequest struct {
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Label string `json:"label" validate:"required,min=2"`
}

// CalendarService manages holidays and serves preloaded calendars to the
// scheduling engine.
type CalendarService struct {
	repo      holidayStore
	cache     calendarCache
	cfg       config.CalendarConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs CalendarService.
func NewCalendarService(repo holidayStore, cache calendarCache, cfg config.CalendarConfig, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, cache: cache, cfg: cfg, validator: validate, logger: logger}
}

// List returns holidays in an optional range.
func (s *CalendarService) List(ctx context.Context, filter models.HolidayFilter) ([]models.Holiday, error) {
	holidays, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	return holidays, nil
}

// Create registers a blackout date.
func (s *CalendarService) Create(ctx context.Context, req CreateHolidayRequest, actorID string) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday date")
	}
	holiday := &models.Holiday{Date: date, Label: req.Label, CreatedBy: actorID}
	if err := s.repo.Create(ctx, holiday); err != nil {
		if repository.UniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("holiday already exists for %s", req.Date))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create holiday")
	}
	s.invalidate(ctx)
	return holiday, nil
}

// Delete removes a holiday.
func (s *CalendarService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete holiday")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
	}
	s.invalidate(ctx)
	return nil
}

// CalendarFrom returns a preloaded calendar covering [start, start+horizon],
// served from cache when fresh.
func (s *CalendarService) CalendarFrom(ctx context.Context, start time.Time) (*Calendar, error) {
	return s.calendarRange(ctx, start, s.cfg.PreloadHorizon)
}

// calendarSlackWeeks pads lesson-derived spans so holiday deferrals near the
// end of a weekly walk still resolve against loaded dates.
const calendarSlackWeeks = 52

// CalendarSpanning returns a calendar wide enough for a weekly walk of the
// given length, never narrower than the configured preload horizon.
func (s *CalendarService) CalendarSpanning(ctx context.Context, start time.Time, weeks int) (*Calendar, error) {
	span := time.Duration(weeks+calendarSlackWeeks) * 7 * 24 * time.Hour
	if span < s.cfg.PreloadHorizon {
		span = s.cfg.PreloadHorizon
	}
	return s.calendarRange(ctx, start, span)
}

func (s *CalendarService) calendarRange(ctx context.Context, start time.Time, span time.Duration) (*Calendar, error) {
	from := DateOnly(start)
	to := from.Add(span)
	key := fmt.Sprintf("holidays:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))

	var cached []time.Time
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return NewCalendar(cached), nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("holiday cache read failed", zap.Error(err))
		}
	}

	dates, err := s.repo.DatesBetween(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday calendar")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, dates, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("holiday cache write failed", zap.Error(err))
		}
	}
	return NewCalendar(dates), nil
}

func (s *CalendarService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "holidays:*"); err != nil {
		s.logger.Warn("holiday cache invalidation failed", zap.Error(err))
	}
}
