package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chayanC7mondal/project-sync-sub000/internal/dto"
	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	appErrors "github.com/chayanC7mondal/project-sync-sub000/pkg/errors"
)

type ledgerHearingRepository interface {
	FindByCaseAndDate(ctx context.Context, caseID string, date time.Time) (*models.HearingSession, error)
	FindNearestOpen(ctx context.Context, caseID string, day time.Time) (*models.HearingSession, error)
	ListWithPendingBefore(ctx context.Context, day time.Time) ([]models.HearingSession, error)
	NextForCase(ctx context.Context, caseID string, day time.Time) (*models.HearingSession, error)
	CompleteIfOpen(ctx context.Context, id string) (bool, error)
}

type ledgerRecordRepository interface {
	MarkPending(ctx context.Context, hearingID, attendeeID string, t models.MarkTransition) (bool, error)
	OverridePending(ctx context.Context, id string, t models.MarkTransition) (bool, error)
	GetByHearingAndAttendee(ctx context.Context, hearingID, attendeeID string) (*models.AttendanceRecord, error)
	GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	SweepPending(ctx context.Context, hearingID string, at time.Time) ([]models.AbsentAttendee, error)
	SetAbsenceReason(ctx context.Context, id, attendeeID, reason string) (bool, error)
	RecentOutcomes(ctx context.Context, attendeeID string, limit int) ([]models.AttendanceStatus, error)
}

type attendeeDirectory interface {
	GetByID(ctx context.Context, id string) (*models.Attendee, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Attendee, error)
}

type codeVerifier interface {
	Verify(presented, caseID string, hearingDate time.Time) bool
}

type attemptLimiter interface {
	Attempts(ctx context.Context, key string) (int, error)
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, error)
	ResetAttempts(ctx context.Context, key string) error
}

// AttendanceConfig tunes self-service marking.
type AttendanceConfig struct {
	GracePeriod        time.Duration
	RequireOpenHearing bool
	Location           *time.Location
	MaxFailedAttempts  int
	AttemptWindow      time.Duration
}

// AttendanceService is the only writer of attendance record status.
type AttendanceService struct {
	hearings  ledgerHearingRepository
	records   ledgerRecordRepository
	directory attendeeDirectory
	codec     codeVerifier
	limiter   attemptLimiter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AttendanceConfig
	now       func() time.Time
}

// NewAttendanceService constructs the attendance ledger.
func NewAttendanceService(
	hearings ledgerHearingRepository,
	records ledgerRecordRepository,
	directory attendeeDirectory,
	codec codeVerifier,
	limiter attemptLimiter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AttendanceConfig,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = 15 * time.Minute
	}
	return &AttendanceService{
		hearings:  hearings,
		records:   records,
		directory: directory,
		codec:     codec,
		limiter:   limiter,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// MarkSelf records the caller's own attendance after verifying the hearing code.
func (s *AttendanceService) MarkSelf(ctx context.Context, claim models.AttendanceClaim) (*models.MarkResult, error) {
	claim.Token = strings.TrimSpace(claim.Token)
	claim.CaseID = strings.TrimSpace(claim.CaseID)
	if claim.Token == "" || claim.CaseID == "" || claim.AttendeeID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token, caseId and attendee are required")
	}
	if claim.Location != nil {
		if err := s.validator.Struct(claim.Location); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid location")
		}
	}

	keys := attemptKeys(claim)
	if s.blocked(ctx, keys) {
		s.metrics.RecordMark(claim.Method, "throttled")
		return nil, appErrors.ErrTooManyAttempts
	}

	hearing, err := s.resolveHearing(ctx, claim)
	if err != nil {
		if errors.Is(err, appErrors.ErrHearingNotFound) {
			s.recordFailure(ctx, keys)
			s.metrics.RecordMark(claim.Method, "not_found")
		}
		return nil, err
	}

	if !s.codec.Verify(claim.Token, hearing.CaseID, hearing.HearingDate) {
		s.recordFailure(ctx, keys)
		s.metrics.RecordMark(claim.Method, "invalid_code")
		s.logger.Info("attendance code rejected",
			zap.String("case_id", claim.CaseID),
			zap.String("attendee_id", claim.AttendeeID),
			zap.String("method", string(claim.Method)))
		return nil, appErrors.ErrInvalidCode
	}
	s.resetAttempts(ctx, keys)

	record, err := s.records.GetByHearingAndAttendee(ctx, hearing.ID, claim.AttendeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordMark(claim.Method, "not_expected")
			return nil, appErrors.ErrNotExpected
		}
		return nil, storeUnavailable(err, "failed to load attendance record")
	}
	if claim.Role != "" && record.AttendeeRole != claim.Role {
		s.metrics.RecordMark(claim.Method, "not_expected")
		return nil, appErrors.ErrNotExpected
	}

	now := s.now()
	status := models.AttendanceStatusPresent
	if now.After(hearing.StartsAt(s.config.Location).Add(s.config.GracePeriod)) {
		status = models.AttendanceStatusLate
	}
	transition := models.MarkTransition{Status: status, Method: claim.Method, MarkedAt: now.UTC(), Location: claim.Location}

	changed, err := s.records.MarkPending(ctx, hearing.ID, claim.AttendeeID, transition)
	if err != nil {
		return nil, storeUnavailable(err, "failed to mark attendance")
	}
	if !changed {
		current, err := s.records.GetByHearingAndAttendee(ctx, hearing.ID, claim.AttendeeID)
		if err != nil {
			return nil, storeUnavailable(err, "failed to reload attendance record")
		}
		s.metrics.RecordMark(claim.Method, "already_marked")
		return &models.MarkResult{Outcome: models.MarkOutcomeAlreadyMarked, Record: current, Hearing: hearing}, nil
	}

	applyTransition(record, transition)
	s.metrics.RecordMark(claim.Method, string(status))
	s.logger.Info("attendance marked",
		zap.String("hearing_id", hearing.ID),
		zap.String("attendee_id", claim.AttendeeID),
		zap.String("status", string(status)),
		zap.String("method", string(claim.Method)))
	return &models.MarkResult{Outcome: models.MarkOutcomeMarked, Record: record, Hearing: hearing}, nil
}

// OverrideByLiaison marks a pending record present or late on an attendee's behalf.
func (s *AttendanceService) OverrideByLiaison(ctx context.Context, recordID string, req dto.OverrideAttendanceRequest, actorID string) (*models.MarkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	transition := models.MarkTransition{Status: req.Status, Method: models.AttendanceMethodLiaisonOverride, MarkedAt: s.now().UTC()}
	changed, err := s.records.OverridePending(ctx, recordID, transition)
	if err != nil {
		return nil, storeUnavailable(err, "failed to override attendance")
	}
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, storeUnavailable(err, "failed to load attendance record")
	}
	outcome := models.MarkOutcomeAlreadyMarked
	if changed {
		outcome = models.MarkOutcomeMarked
		s.logger.Info("attendance overridden",
			zap.String("record_id", recordID),
			zap.String("status", string(req.Status)),
			zap.String("actor_id", actorID))
	}
	s.metrics.RecordMark(models.AttendanceMethodLiaisonOverride, string(outcome))
	return &models.MarkResult{Outcome: outcome, Record: record}, nil
}

// SubmitAbsenceReason stores an explanation on the caller's own absent record.
func (s *AttendanceService) SubmitAbsenceReason(ctx context.Context, recordID, attendeeID string, req dto.AbsenceReasonRequest) (*models.AttendanceRecord, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence reason")
	}
	changed, err := s.records.SetAbsenceReason(ctx, recordID, attendeeID, req.Reason)
	if err != nil {
		return nil, storeUnavailable(err, "failed to save absence reason")
	}
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, storeUnavailable(err, "failed to load attendance record")
	}
	if !changed {
		if record.AttendeeID != attendeeID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "attendance record belongs to another attendee")
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "absence reason can only be given for an absent record")
	}
	return record, nil
}

// SweepAbsences moves every pending record of hearings dated before asOf's
// calendar day to absent and builds the notification requests for them.
// Records are returned at most once across concurrent sweeps.
func (s *AttendanceService) SweepAbsences(ctx context.Context, asOf time.Time) ([]models.AbsenceBatch, error) {
	today := dayOf(asOf, s.config.Location)
	hearings, err := s.hearings.ListWithPendingBefore(ctx, today)
	if err != nil {
		return nil, storeUnavailable(err, "failed to list hearings for sweep")
	}

	batches := make([]models.AbsenceBatch, 0, len(hearings))
	for _, hearing := range hearings {
		absent, err := s.records.SweepPending(ctx, hearing.ID, asOf.UTC())
		if err != nil {
			s.logger.Warn("absence sweep failed", zap.String("hearing_id", hearing.ID), zap.Error(err))
			continue
		}
		if _, err := s.hearings.CompleteIfOpen(ctx, hearing.ID); err != nil {
			s.logger.Warn("close swept hearing failed", zap.String("hearing_id", hearing.ID), zap.Error(err))
		}
		if len(absent) == 0 {
			continue
		}
		s.metrics.RecordAbsences(len(absent))
		batches = append(batches, models.AbsenceBatch{
			Hearing:  hearing,
			Absent:   absent,
			Requests: s.absenceRequests(ctx, hearing, absent),
		})
	}
	return batches, nil
}

// ConsecutiveAbsences counts the attendee's absences since their last attended hearing.
func (s *AttendanceService) ConsecutiveAbsences(ctx context.Context, attendeeID string, limit int) (int, error) {
	statuses, err := s.records.RecentOutcomes(ctx, attendeeID, limit)
	if err != nil {
		return 0, storeUnavailable(err, "failed to load attendance history")
	}
	count := 0
	for _, status := range statuses {
		if status != models.AttendanceStatusAbsent {
			break
		}
		count++
	}
	return count, nil
}

func (s *AttendanceService) absenceRequests(ctx context.Context, hearing models.HearingSession, absent []models.AbsentAttendee) []models.NotificationRequest {
	contacts := s.contacts(ctx, absent)

	var next *models.HearingSession
	var officers, witnesses []string
	var officerIDs []string
	requests := make([]models.NotificationRequest, 0, len(absent)+2)

	for _, a := range absent {
		to := contacts[a.AttendeeID]
		switch a.AttendeeRole {
		case models.AttendeeRoleOfficer:
			officers = append(officers, a.AttendeeName)
			officerIDs = append(officerIDs, a.AttendeeID)
			requests = append(requests, officerAbsentRequest(hearing, to.Recipient(), a.RecordID))
		case models.AttendeeRoleWitness:
			witnesses = append(witnesses, a.AttendeeName)
			if next == nil {
				n, err := s.hearings.NextForCase(ctx, hearing.CaseID, hearing.HearingDate)
				if err != nil {
					s.logger.Warn("next hearing lookup failed", zap.String("case_id", hearing.CaseID), zap.Error(err))
				}
				next = n
			}
			requests = append(requests, witnessAbsentRequest(hearing, next, to.Recipient(), a.RecordID))
		}
	}

	if len(officers) == 0 || len(witnesses) == 0 {
		return requests
	}
	alerted := make(map[string]struct{})
	for _, id := range officerIDs {
		officer := contacts[id]
		requests = append(requests, bothAbsentRequest(hearing, officer.Recipient(), officers, witnesses))
		if officer.SupervisorID == nil {
			continue
		}
		if _, done := alerted[*officer.SupervisorID]; done {
			continue
		}
		alerted[*officer.SupervisorID] = struct{}{}
		supervisor, err := s.directory.GetByID(ctx, *officer.SupervisorID)
		if err != nil {
			s.logger.Warn("supervisor lookup failed", zap.String("supervisor_id", *officer.SupervisorID), zap.Error(err))
			continue
		}
		requests = append(requests, bothAbsentRequest(hearing, supervisor.Recipient(), officers, witnesses))
	}
	return requests
}

// contacts resolves directory entries, falling back to roster names.
func (s *AttendanceService) contacts(ctx context.Context, absent []models.AbsentAttendee) map[string]models.Attendee {
	out := make(map[string]models.Attendee, len(absent))
	ids := make([]string, 0, len(absent))
	for _, a := range absent {
		out[a.AttendeeID] = models.Attendee{ID: a.AttendeeID, FullName: a.AttendeeName, Role: a.AttendeeRole}
		ids = append(ids, a.AttendeeID)
	}
	found, err := s.directory.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("attendee directory lookup failed", zap.Error(err))
		return out
	}
	for _, a := range found {
		out[a.ID] = a
	}
	return out
}

func (s *AttendanceService) resolveHearing(ctx context.Context, claim models.AttendanceClaim) (*models.HearingSession, error) {
	var (
		hearing *models.HearingSession
		err     error
	)
	if claim.HearingDate != nil {
		hearing, err = s.hearings.FindByCaseAndDate(ctx, claim.CaseID, *claim.HearingDate)
	} else {
		hearing, err = s.hearings.FindNearestOpen(ctx, claim.CaseID, dayOf(s.now(), s.config.Location))
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrHearingNotFound
		}
		return nil, storeUnavailable(err, "failed to resolve hearing")
	}
	if s.config.RequireOpenHearing && !hearing.Status.Open() {
		return nil, appErrors.ErrHearingNotFound
	}
	return hearing, nil
}

// attemptKeys counts failures per attendee and, when known, per client
// address. Anonymous callers choose their attendee ID, so only the client key
// bounds them.
func attemptKeys(claim models.AttendanceClaim) []string {
	prefix := "attendance:attempts:" + claim.CaseID + ":"
	keys := []string{prefix + "attendee:" + claim.AttendeeID}
	if claim.ClientIP != "" {
		keys = append(keys, prefix+"client:"+claim.ClientIP)
	}
	return keys
}

func (s *AttendanceService) blocked(ctx context.Context, keys []string) bool {
	if s.limiter == nil || s.config.MaxFailedAttempts <= 0 {
		return false
	}
	for _, key := range keys {
		n, err := s.limiter.Attempts(ctx, key)
		if err != nil {
			s.logger.Warn("attempt limiter unavailable", zap.Error(err))
			return false
		}
		if n >= s.config.MaxFailedAttempts {
			return true
		}
	}
	return false
}

func (s *AttendanceService) recordFailure(ctx context.Context, keys []string) {
	if s.limiter == nil || s.config.MaxFailedAttempts <= 0 {
		return
	}
	for _, key := range keys {
		if _, err := s.limiter.RecordFailure(ctx, key, s.config.AttemptWindow); err != nil {
			s.logger.Warn("attempt limiter unavailable", zap.Error(err))
			return
		}
	}
}

func (s *AttendanceService) resetAttempts(ctx context.Context, keys []string) {
	if s.limiter == nil || s.config.MaxFailedAttempts <= 0 {
		return
	}
	for _, key := range keys {
		if err := s.limiter.ResetAttempts(ctx, key); err != nil {
			s.logger.Warn("attempt limiter unavailable", zap.Error(err))
			return
		}
	}
}

func applyTransition(record *models.AttendanceRecord, t models.MarkTransition) {
	markedAt := t.MarkedAt
	record.Status = t.Status
	record.Method = t.Method
	record.MarkedAt = &markedAt
	record.UpdatedAt = markedAt
	if t.Location != nil {
		lat, lng := t.Location.Latitude, t.Location.Longitude
		record.Latitude, record.Longitude = &lat, &lng
	}
}

func storeUnavailable(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, message)
}
