package models

import "time"

// TriggerKind names the scheduler trigger that produced a notification.
type TriggerKind string

const (
	TriggerWeeklyReminder       TriggerKind = "weekly-reminder"
	TriggerDayOfReminder        TriggerKind = "day-of-reminder"
	TriggerWitnessAbsent        TriggerKind = "witness-absent"
	TriggerOfficerAbsent        TriggerKind = "officer-absent"
	TriggerBothAbsent           TriggerKind = "both-absent"
	TriggerSupervisorEscalation TriggerKind = "supervisor-escalation"
)

// NotificationPriority drives channel selection.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// PriorityFor derives the priority of a trigger kind.
func PriorityFor(kind TriggerKind) NotificationPriority {
	switch kind {
	case TriggerWeeklyReminder:
		return PriorityHigh
	case TriggerDayOfReminder, TriggerWitnessAbsent, TriggerOfficerAbsent, TriggerBothAbsent, TriggerSupervisorEscalation:
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// Related entity types carried on notifications.
const (
	EntityHearingSession   = "hearing_session"
	EntityAttendanceRecord = "attendance_record"
)

// Recipient is who a notification is addressed to.
type Recipient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// NotificationRequest is the ephemeral value handed to the dispatcher.
type NotificationRequest struct {
	Recipient         Recipient            `json:"recipient"`
	Title             string               `json:"title"`
	Message           string               `json:"message"`
	Priority          NotificationPriority `json:"priority"`
	RelatedEntityType string               `json:"related_entity_type"`
	RelatedEntityID   string               `json:"related_entity_id"`
	TriggerKind       TriggerKind          `json:"trigger_kind"`
	ForceSMS          bool                 `json:"force_sms,omitempty"`
}

// NewNotificationRequest builds a request with the priority of its kind.
func NewNotificationRequest(kind TriggerKind, to Recipient, title, message, entityType, entityID string) NotificationRequest {
	return NotificationRequest{
		Recipient:         to,
		Title:             title,
		Message:           message,
		Priority:          PriorityFor(kind),
		RelatedEntityType: entityType,
		RelatedEntityID:   entityID,
		TriggerKind:       kind,
	}
}

// Notification is the durable in-app record of a request.
type Notification struct {
	ID                string               `db:"id" json:"id"`
	RecipientID       string               `db:"recipient_id" json:"recipient_id"`
	Title             string               `db:"title" json:"title"`
	Message           string               `db:"message" json:"message"`
	Priority          NotificationPriority `db:"priority" json:"priority"`
	TriggerKind       TriggerKind          `db:"trigger_kind" json:"trigger_kind"`
	RelatedEntityType string               `db:"related_entity_type" json:"related_entity_type"`
	RelatedEntityID   string               `db:"related_entity_id" json:"related_entity_id"`
	IsRead            bool                 `db:"is_read" json:"is_read"`
	CreatedAt         time.Time            `db:"created_at" json:"created_at"`
}

// ChannelOutcome captures one channel attempt, including why it was skipped.
type ChannelOutcome struct {
	Attempted  bool   `json:"attempted"`
	Success    bool   `json:"success"`
	Provider   string `json:"provider,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Error      string `json:"error,omitempty"`
	Reason     string `json:"reason,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// DispatchResult reports every channel independently.
type DispatchResult struct {
	InApp          bool           `json:"in_app"`
	InAppError     string         `json:"in_app_error,omitempty"`
	NotificationID string         `json:"notification_id,omitempty"`
	SMS            ChannelOutcome `json:"sms"`
	Email          ChannelOutcome `json:"email"`
}

// NotificationFilter pages through a recipient's inbox.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Page        int
	PageSize    int
}
