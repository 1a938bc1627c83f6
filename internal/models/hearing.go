package models

import "time"

// HearingStatus tracks the lifecycle of a hearing session.
type HearingStatus string

const (
	HearingStatusScheduled  HearingStatus = "scheduled"
	HearingStatusInProgress HearingStatus = "in_progress"
	HearingStatusCompleted  HearingStatus = "completed"
	HearingStatusCancelled  HearingStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s HearingStatus) Valid() bool {
	switch s {
	case HearingStatusScheduled, HearingStatusInProgress, HearingStatusCompleted, HearingStatusCancelled:
		return true
	default:
		return false
	}
}

// Open reports whether attendance may still be recorded.
func (s HearingStatus) Open() bool {
	return s == HearingStatusScheduled || s == HearingStatusInProgress
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s HearingStatus) CanTransitionTo(next HearingStatus) bool {
	switch s {
	case HearingStatusScheduled:
		return next == HearingStatusInProgress || next == HearingStatusCancelled
	case HearingStatusInProgress:
		return next == HearingStatusCompleted || next == HearingStatusCancelled
	default:
		return false
	}
}

// HearingTimeLayout is the wall-clock layout of HearingSession.HearingTime.
const HearingTimeLayout = "15:04"

// HearingSession is one scheduled court appearance for a case.
type HearingSession struct {
	ID          string        `db:"id" json:"id"`
	CaseID      string        `db:"case_id" json:"case_id"`
	HearingDate time.Time     `db:"hearing_date" json:"hearing_date"`
	HearingTime string        `db:"hearing_time" json:"hearing_time"`
	CourtName   string        `db:"court_name" json:"court_name"`
	Location    string        `db:"location" json:"location"`
	QRCode      string        `db:"qr_code" json:"qr_code"`
	ManualCode  string        `db:"manual_code" json:"manual_code"`
	Status      HearingStatus `db:"status" json:"status"`
	CreatedBy   string        `db:"created_by" json:"created_by"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// DayStart returns midnight of the hearing date in loc.
func (h HearingSession) DayStart(loc *time.Location) time.Time {
	y, m, d := h.HearingDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// StartsAt combines the hearing date and time in loc. An unparsable time
// falls back to the start of the day.
func (h HearingSession) StartsAt(loc *time.Location) time.Time {
	start := h.DayStart(loc)
	clock, err := time.Parse(HearingTimeLayout, h.HearingTime)
	if err != nil {
		return start
	}
	return start.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
}

// DateString renders the hearing date as YYYY-MM-DD.
func (h HearingSession) DateString() string {
	return h.HearingDate.Format("2006-01-02")
}
