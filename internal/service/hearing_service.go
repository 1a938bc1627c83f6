package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chayanC7mondal/project-sync-sub000/internal/dto"
	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	"github.com/chayanC7mondal/project-sync-sub000/internal/repository"
	appErrors "github.com/chayanC7mondal/project-sync-sub000/pkg/errors"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/export"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/hearingcode"
)

type hearingStore interface {
	CreateWithRoster(ctx context.Context, hearing *models.HearingSession, roster []models.AttendanceRecord) error
	GetByID(ctx context.Context, id string) (*models.HearingSession, error)
	TransitionStatus(ctx context.Context, id string, from, to models.HearingStatus) (bool, error)
}

type codeDeriver interface {
	Derive(caseID string, hearingDate time.Time) hearingcode.Codes
}

type sheetRenderer interface {
	RenderSheet(sheet export.HearingSheet) ([]byte, error)
}

type rosterCSVRenderer interface {
	RenderRoster(sheet export.HearingSheet) ([]byte, error)
}

// HearingService schedules hearings and serves their rosters and printable codes.
type HearingService struct {
	hearings  hearingStore
	roster    rosterReader
	directory attendeeDirectory
	codes     codeDeriver
	pdf       sheetRenderer
	csv       rosterCSVRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewHearingService constructs a HearingService.
func NewHearingService(hearings hearingStore, roster rosterReader, directory attendeeDirectory, codes codeDeriver, pdf sheetRenderer, csv rosterCSVRenderer, validate *validator.Validate, logger *zap.Logger) *HearingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &HearingService{
		hearings:  hearings,
		roster:    roster,
		directory: directory,
		codes:     codes,
		pdf:       pdf,
		csv:       csv,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Schedule creates a hearing with its codes and a pending record per roster entry.
func (s *HearingService) Schedule(ctx context.Context, req dto.ScheduleHearingRequest, actorID string) (*dto.HearingDetail, error) {
	req.CaseID = strings.TrimSpace(req.CaseID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid hearing payload")
	}
	date, err := time.Parse(hearingcode.DateLayout, req.HearingDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hearingDate must be YYYY-MM-DD")
	}

	ids := make([]string, 0, len(req.Roster))
	seen := make(map[string]struct{}, len(req.Roster))
	for _, entry := range req.Roster {
		if _, dup := seen[entry.AttendeeID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attendee %s listed twice", entry.AttendeeID))
		}
		seen[entry.AttendeeID] = struct{}{}
		ids = append(ids, entry.AttendeeID)
	}
	found, err := s.directory.ListByIDs(ctx, ids)
	if err != nil {
		return nil, storeUnavailable(err, "failed to load attendees")
	}
	byID := make(map[string]models.Attendee, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	records := make([]models.AttendanceRecord, 0, len(req.Roster))
	for _, entry := range req.Roster {
		attendee, ok := byID[entry.AttendeeID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendee %s", entry.AttendeeID))
		}
		records = append(records, models.AttendanceRecord{
			AttendeeID:   attendee.ID,
			AttendeeName: attendee.FullName,
			AttendeeRole: entry.Role,
		})
	}

	codes := s.codes.Derive(req.CaseID, date)
	hearing := &models.HearingSession{
		CaseID:      req.CaseID,
		HearingDate: date,
		HearingTime: req.HearingTime,
		CourtName:   strings.TrimSpace(req.CourtName),
		Location:    strings.TrimSpace(req.Location),
		QRCode:      codes.QRToken,
		ManualCode:  codes.ManualToken,
		Status:      models.HearingStatusScheduled,
		CreatedBy:   actorID,
	}
	if err := s.hearings.CreateWithRoster(ctx, hearing, records); err != nil {
		if errors.Is(err, repository.ErrDuplicateHearing) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a hearing is already scheduled for this case on that date")
		}
		return nil, storeUnavailable(err, "failed to schedule hearing")
	}

	s.logger.Info("hearing scheduled",
		zap.String("hearing_id", hearing.ID),
		zap.String("case_id", hearing.CaseID),
		zap.String("date", req.HearingDate),
		zap.Int("roster", len(records)),
		zap.String("actor_id", actorID))
	return &dto.HearingDetail{Hearing: hearing, Attendance: records, Summary: dto.Tally(records)}, nil
}

// Get returns a hearing with its roster.
func (s *HearingService) Get(ctx context.Context, id string) (*dto.HearingDetail, error) {
	hearing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := s.listRoster(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.HearingDetail{Hearing: hearing, Attendance: records, Summary: dto.Tally(records)}, nil
}

// ListAttendance returns the roster records of a hearing.
func (s *HearingService) ListAttendance(ctx context.Context, id string) ([]models.AttendanceRecord, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	return s.listRoster(ctx, id)
}

func (s *HearingService) listRoster(ctx context.Context, id string) ([]models.AttendanceRecord, error) {
	records, err := s.roster.ListByHearing(ctx, id)
	if err != nil {
		return nil, storeUnavailable(err, "failed to load attendance")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return records, nil
}

// UpdateStatus moves a hearing along its lifecycle.
func (s *HearingService) UpdateStatus(ctx context.Context, id string, req dto.UpdateHearingStatusRequest, actorID string) (*models.HearingSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	hearing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !hearing.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot move hearing from %s to %s", hearing.Status, req.Status))
	}
	ok, err := s.hearings.TransitionStatus(ctx, id, hearing.Status, req.Status)
	if err != nil {
		return nil, storeUnavailable(err, "failed to update hearing status")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "hearing status changed concurrently")
	}
	s.logger.Info("hearing status updated",
		zap.String("hearing_id", id),
		zap.String("from", string(hearing.Status)),
		zap.String("to", string(req.Status)),
		zap.String("actor_id", actorID))
	hearing.Status = req.Status
	hearing.UpdatedAt = s.now().UTC()
	return hearing, nil
}

// Sheet renders the printable attendance sheet PDF.
func (s *HearingService) Sheet(ctx context.Context, id string) ([]byte, string, error) {
	sheet, err := s.sheet(ctx, id)
	if err != nil {
		return nil, "", err
	}
	raw, err := s.pdf.RenderSheet(sheet)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance sheet")
	}
	return raw, exportName(sheet, "pdf"), nil
}

// RosterCSV renders the roster as CSV.
func (s *HearingService) RosterCSV(ctx context.Context, id string) ([]byte, string, error) {
	sheet, err := s.sheet(ctx, id)
	if err != nil {
		return nil, "", err
	}
	raw, err := s.csv.RenderRoster(sheet)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return raw, exportName(sheet, "csv"), nil
}

// QRImage renders the hearing's QR token as a PNG.
func (s *HearingService) QRImage(ctx context.Context, id string, size int) ([]byte, error) {
	hearing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if size > 1024 {
		size = 1024
	}
	raw, err := export.QRPNG(hearing.QRCode, size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code")
	}
	return raw, nil
}

func (s *HearingService) sheet(ctx context.Context, id string) (export.HearingSheet, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return export.HearingSheet{}, err
	}
	h := detail.Hearing
	sheet := export.HearingSheet{
		CaseID:     h.CaseID,
		CourtName:  h.CourtName,
		Location:   h.Location,
		Date:       h.DateString(),
		Time:       h.HearingTime,
		Status:     string(h.Status),
		QRToken:    h.QRCode,
		ManualCode: h.ManualCode,
		Generated:  s.now(),
	}
	for _, r := range detail.Attendance {
		sheet.Rows = append(sheet.Rows, export.SheetRow{
			Name:     r.AttendeeName,
			Role:     string(r.AttendeeRole),
			Status:   string(r.Status),
			MarkedAt: r.MarkedAt,
			Method:   string(r.Method),
		})
	}
	return sheet, nil
}

func (s *HearingService) load(ctx context.Context, id string) (*models.HearingSession, error) {
	hearing, err := s.hearings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hearing not found")
		}
		return nil, storeUnavailable(err, "failed to load hearing")
	}
	return hearing, nil
}

func exportName(sheet export.HearingSheet, ext string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, sheet.CaseID)
	return fmt.Sprintf("attendance_%s_%s.%s", safe, sheet.Date, ext)
}
