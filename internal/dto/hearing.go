package dto

import "github.com/chayanC7mondal/project-sync-sub000/internal/models"

// RosterEntry names one expected attendee of a new hearing.
type RosterEntry struct {
	AttendeeID string              `json:"attendeeId" validate:"required"`
	Role       models.AttendeeRole `json:"role" validate:"required,oneof=officer witness"`
}

// ScheduleHearingRequest captures POST /hearings payload.
type ScheduleHearingRequest struct {
	CaseID      string        `json:"caseId" validate:"required,max=128"`
	HearingDate string        `json:"hearingDate" validate:"required,datetime=2006-01-02"`
	HearingTime string        `json:"hearingTime" validate:"required,datetime=15:04"`
	CourtName   string        `json:"courtName" validate:"required,max=255"`
	Location    string        `json:"location" validate:"max=255"`
	Roster      []RosterEntry `json:"roster" validate:"required,min=1,dive"`
}

// UpdateHearingStatusRequest captures PATCH /hearings/:id/status payload.
type UpdateHearingStatusRequest struct {
	Status models.HearingStatus `json:"status" validate:"required,oneof=scheduled in_progress completed cancelled"`
}

// HearingDetail bundles a hearing with its roster.
type HearingDetail struct {
	Hearing    *models.HearingSession    `json:"hearing"`
	Attendance []models.AttendanceRecord `json:"attendance"`
	Summary    AttendanceTally           `json:"summary"`
}

// AttendanceTally counts roster records per status.
type AttendanceTally struct {
	Expected int `json:"expected"`
	Pending  int `json:"pending"`
	Present  int `json:"present"`
	Late     int `json:"late"`
	Absent   int `json:"absent"`
}

// Tally counts records per status.
func Tally(records []models.AttendanceRecord) AttendanceTally {
	t := AttendanceTally{Expected: len(records)}
	for _, r := range records {
		switch r.Status {
		case models.AttendanceStatusPending:
			t.Pending++
		case models.AttendanceStatusPresent:
			t.Present++
		case models.AttendanceStatusLate:
			t.Late++
		case models.AttendanceStatusAbsent:
			t.Absent++
		}
	}
	return t
}
