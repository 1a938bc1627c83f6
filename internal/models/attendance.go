package models

import "time"

// AttendeeRole distinguishes investigating officers from witnesses.
type AttendeeRole string

const (
	AttendeeRoleOfficer AttendeeRole = "officer"
	AttendeeRoleWitness AttendeeRole = "witness"

	// AttendeeRoleSupervisor appears only in the directory, never on a roster.
	AttendeeRoleSupervisor AttendeeRole = "supervisor"
)

// Valid returns true when the role can appear on a hearing roster.
func (r AttendeeRole) Valid() bool {
	return r == AttendeeRoleOfficer || r == AttendeeRoleWitness
}

// AttendanceStatus is the presence state of one attendee at one hearing.
type AttendanceStatus string

const (
	AttendanceStatusPending AttendanceStatus = "pending"
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
)

// AttendanceMethod records how a status was set.
type AttendanceMethod string

const (
	AttendanceMethodQR              AttendanceMethod = "qr"
	AttendanceMethodManual          AttendanceMethod = "manual"
	AttendanceMethodLiaisonOverride AttendanceMethod = "liaison-override"
	AttendanceMethodUnset           AttendanceMethod = "unset"
)

// AttendanceRecord is the per-attendee presence state for one hearing.
type AttendanceRecord struct {
	ID               string           `db:"id" json:"id"`
	HearingSessionID string           `db:"hearing_session_id" json:"hearing_session_id"`
	AttendeeID       string           `db:"attendee_id" json:"attendee_id"`
	AttendeeName     string           `db:"attendee_name" json:"attendee_name"`
	AttendeeRole     AttendeeRole     `db:"attendee_role" json:"attendee_role"`
	Status           AttendanceStatus `db:"status" json:"status"`
	MarkedAt         *time.Time       `db:"marked_at" json:"marked_at,omitempty"`
	Method           AttendanceMethod `db:"method" json:"method"`
	Latitude         *float64         `db:"latitude" json:"latitude,omitempty"`
	Longitude        *float64         `db:"longitude" json:"longitude,omitempty"`
	AbsenceReason    *string          `db:"absence_reason" json:"absence_reason,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// GeoPoint is an optional location captured with a self-service mark.
type GeoPoint struct {
	Latitude  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// MarkTransition is the conditional write applied to a pending record.
type MarkTransition struct {
	Status   AttendanceStatus
	Method   AttendanceMethod
	MarkedAt time.Time
	Location *GeoPoint
}

// MarkOutcome tells callers whether a mark changed anything.
type MarkOutcome string

const (
	MarkOutcomeMarked        MarkOutcome = "marked"
	MarkOutcomeAlreadyMarked MarkOutcome = "already_marked"
)

// MarkResult is returned by self-service and liaison marking.
type MarkResult struct {
	Outcome MarkOutcome       `json:"outcome"`
	Record  *AttendanceRecord `json:"record"`
	Hearing *HearingSession   `json:"hearing,omitempty"`
}

// AbsentAttendee is one record moved to absent by the sweep.
type AbsentAttendee struct {
	RecordID     string       `db:"id"`
	AttendeeID   string       `db:"attendee_id"`
	AttendeeName string       `db:"attendee_name"`
	AttendeeRole AttendeeRole `db:"attendee_role"`
}

// AbsenceBatch groups newly-absent attendees of one hearing with the
// notification requests produced for them.
type AbsenceBatch struct {
	Hearing  HearingSession
	Absent   []AbsentAttendee
	Requests []NotificationRequest
}

// AttendanceClaim is the canonical self-service attendance assertion. ClientIP
// is the caller's network address and keys the code-guessing limiter.
type AttendanceClaim struct {
	Token        string
	CaseID       string
	HearingDate  *time.Time
	AttendeeID   string
	AttendeeName string
	Role         AttendeeRole
	Location     *GeoPoint
	Method       AttendanceMethod
	ClientIP     string
}
