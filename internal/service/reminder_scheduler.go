package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/jobs"
)

const schedulerLockKey = "hearing-attendance:scheduler:leader"

type schedulerHearingRepository interface {
	ListOpenBetween(ctx context.Context, from, to time.Time) ([]models.HearingSession, error)
}

type rosterReader interface {
	ListByHearing(ctx context.Context, hearingID string) ([]models.AttendanceRecord, error)
}

type triggerMarkers interface {
	Claim(ctx context.Context, hearingID string, kind models.TriggerKind) (bool, error)
	Release(ctx context.Context, hearingID string, kind models.TriggerKind) error
}

type leaderLock interface {
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

type absenceLedger interface {
	SweepAbsences(ctx context.Context, asOf time.Time) ([]models.AbsenceBatch, error)
	ConsecutiveAbsences(ctx context.Context, attendeeID string, limit int) (int, error)
}

type requestQueue interface {
	Enqueue(job jobs.Job) error
}

// SchedulerConfig governs the reminder loop.
type SchedulerConfig struct {
	Interval                time.Duration
	LockTTL                 time.Duration
	Concurrency             int
	OfficerAbsenceThreshold int
	Location                *time.Location
	Owner                   string
}

// TickReport summarises one scheduler pass.
type TickReport struct {
	Leader   bool
	Hearings int
	Enqueued int
	Absent   int
	Failures int
}

// ReminderScheduler fires weekly and day-of reminders once per hearing and
// turns swept absences into notifications.
type ReminderScheduler struct {
	hearings  schedulerHearingRepository
	roster    rosterReader
	markers   triggerMarkers
	lock      leaderLock
	ledger    absenceLedger
	directory attendeeDirectory
	queue     requestQueue
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       SchedulerConfig
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewReminderScheduler constructs the scheduler.
func NewReminderScheduler(
	hearings schedulerHearingRepository,
	roster rosterReader,
	markers triggerMarkers,
	lock leaderLock,
	ledger absenceLedger,
	directory attendeeDirectory,
	queue requestQueue,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg SchedulerConfig,
) *ReminderScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.OfficerAbsenceThreshold <= 0 {
		cfg.OfficerAbsenceThreshold = 3
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Owner == "" {
		cfg.Owner = "scheduler"
	}
	return &ReminderScheduler{
		hearings:  hearings,
		roster:    roster,
		markers:   markers,
		lock:      lock,
		ledger:    ledger,
		directory: directory,
		queue:     queue,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start runs a tick immediately and then every interval until Stop or ctx ends.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		s.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}(s.done)
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

// Tick performs one scheduler pass. Per-hearing failures are logged and
// retried on the next tick.
func (s *ReminderScheduler) Tick(ctx context.Context) TickReport {
	started := time.Now()
	defer func() { s.metrics.ObserveTick(time.Since(started)) }()

	var report TickReport
	now := s.now()

	if s.lock != nil {
		acquired, err := s.lock.AcquireLock(ctx, schedulerLockKey, s.cfg.Owner, s.cfg.LockTTL)
		switch {
		case err != nil:
			// markers and the sweep stay idempotent without the lock
			s.logger.Warn("scheduler lock unavailable, running unguarded", zap.Error(err))
		case !acquired:
			s.logger.Debug("scheduler lock held elsewhere, skipping tick")
			return report
		default:
			defer func() {
				if err := s.lock.ReleaseLock(context.Background(), schedulerLockKey, s.cfg.Owner); err != nil {
					s.logger.Warn("scheduler lock release failed", zap.Error(err))
				}
			}()
		}
	}
	report.Leader = true

	today := dayOf(now, s.cfg.Location)
	hearings, err := s.hearings.ListOpenBetween(ctx, today, today.AddDate(0, 0, 7))
	if err != nil {
		s.logger.Error("list upcoming hearings failed", zap.Error(err))
		report.Failures++
	}
	report.Hearings = len(hearings)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)
	for _, hearing := range hearings {
		hearing := hearing
		g.Go(func() error {
			enqueued, err := s.processReminders(ctx, hearing, now)
			mu.Lock()
			report.Enqueued += enqueued
			if err != nil {
				report.Failures++
			}
			mu.Unlock()
			if err != nil {
				s.logger.Warn("hearing reminders failed", zap.String("hearing_id", hearing.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	batches, err := s.ledger.SweepAbsences(ctx, now)
	if err != nil {
		s.logger.Error("absence sweep failed", zap.Error(err))
		report.Failures++
	}
	for _, batch := range batches {
		report.Absent += len(batch.Absent)
		for _, req := range batch.Requests {
			if s.enqueue(batch.Hearing.ID, req) {
				report.Enqueued++
			} else {
				report.Failures++
			}
		}
		report.Enqueued += s.escalate(ctx, batch)
	}

	s.logger.Info("scheduler tick complete",
		zap.Int("hearings", report.Hearings),
		zap.Int("enqueued", report.Enqueued),
		zap.Int("absent", report.Absent),
		zap.Int("failures", report.Failures))
	return report
}

// dueTriggers returns the reminder kinds whose window contains now.
func (s *ReminderScheduler) dueTriggers(h models.HearingSession, now time.Time) []models.TriggerKind {
	starts := h.StartsAt(s.cfg.Location)
	dayStart := h.DayStart(s.cfg.Location)
	var due []models.TriggerKind
	if !now.Before(starts.AddDate(0, 0, -7)) && now.Before(dayStart) {
		due = append(due, models.TriggerWeeklyReminder)
	}
	if !now.Before(dayStart) && now.Before(starts) {
		due = append(due, models.TriggerDayOfReminder)
	}
	return due
}

func (s *ReminderScheduler) processReminders(ctx context.Context, h models.HearingSession, now time.Time) (int, error) {
	due := s.dueTriggers(h, now)
	if len(due) == 0 {
		return 0, nil
	}

	records, err := s.roster.ListByHearing(ctx, h.ID)
	if err != nil {
		return 0, fmt.Errorf("load roster: %w", err)
	}
	audience := s.audience(ctx, records)
	if len(audience) == 0 {
		return 0, nil
	}

	enqueued := 0
	for _, kind := range due {
		claimed, err := s.markers.Claim(ctx, h.ID, kind)
		if err != nil {
			return enqueued, fmt.Errorf("claim %s: %w", kind, err)
		}
		if !claimed {
			continue
		}
		failed := false
		for _, to := range audience {
			if s.enqueue(h.ID, reminderRequest(kind, h, to)) {
				enqueued++
			} else {
				failed = true
			}
		}
		if failed {
			if err := s.markers.Release(ctx, h.ID, kind); err != nil {
				return enqueued, fmt.Errorf("release %s: %w", kind, err)
			}
			return enqueued, fmt.Errorf("enqueue %s: %w", kind, jobs.ErrQueueFull)
		}
	}
	return enqueued, nil
}

// audience resolves contacts for every attendee still expected at the hearing.
func (s *ReminderScheduler) audience(ctx context.Context, records []models.AttendanceRecord) []models.Recipient {
	ids := make([]string, 0, len(records))
	fallback := make(map[string]models.Recipient, len(records))
	for _, r := range records {
		if r.Status != models.AttendanceStatusPending {
			continue
		}
		ids = append(ids, r.AttendeeID)
		fallback[r.AttendeeID] = models.Recipient{ID: r.AttendeeID, Name: r.AttendeeName}
	}
	if len(ids) == 0 {
		return nil
	}
	found, err := s.directory.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("attendee directory lookup failed", zap.Error(err))
	}
	for _, a := range found {
		fallback[a.ID] = a.Recipient()
	}
	out := make([]models.Recipient, 0, len(ids))
	for _, id := range ids {
		out = append(out, fallback[id])
	}
	return out
}

// escalate notifies supervisors of officers whose consecutive absences reach
// the threshold. A streak escalates once; later absences in the same streak
// do not fire again.
func (s *ReminderScheduler) escalate(ctx context.Context, batch models.AbsenceBatch) int {
	enqueued := 0
	for _, a := range batch.Absent {
		if a.AttendeeRole != models.AttendeeRoleOfficer {
			continue
		}
		count, err := s.ledger.ConsecutiveAbsences(ctx, a.AttendeeID, s.cfg.OfficerAbsenceThreshold*4)
		if err != nil {
			s.logger.Warn("absence history lookup failed", zap.String("attendee_id", a.AttendeeID), zap.Error(err))
			continue
		}
		if count != s.cfg.OfficerAbsenceThreshold {
			continue
		}
		officer, err := s.directory.GetByID(ctx, a.AttendeeID)
		if err != nil || officer.SupervisorID == nil {
			s.logger.Warn("no supervisor to escalate to", zap.String("attendee_id", a.AttendeeID), zap.Error(err))
			continue
		}
		supervisor, err := s.directory.GetByID(ctx, *officer.SupervisorID)
		if err != nil {
			s.logger.Warn("supervisor lookup failed", zap.String("supervisor_id", *officer.SupervisorID), zap.Error(err))
			continue
		}
		if s.enqueue(batch.Hearing.ID, escalationRequest(*officer, supervisor.Recipient(), count, batch.Hearing)) {
			enqueued++
		}
	}
	return enqueued
}

func (s *ReminderScheduler) enqueue(hearingID string, req models.NotificationRequest) bool {
	job := jobs.Job{
		ID:       fmt.Sprintf("%s:%s:%s", hearingID, req.TriggerKind, req.Recipient.ID),
		Type:     JobTypeDispatch,
		Payload:  req,
		Enqueued: s.now(),
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		return false
	}
	s.metrics.RecordTrigger(req.TriggerKind)
	return true
}
