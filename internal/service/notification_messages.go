package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
)

const whenLayout = "Mon 02 Jan 2006"

func hearingWhen(h models.HearingSession) string {
	return fmt.Sprintf("%s at %s, %s", h.HearingDate.Format(whenLayout), h.HearingTime, h.CourtName)
}

func reminderRequest(kind models.TriggerKind, h models.HearingSession, to models.Recipient) models.NotificationRequest {
	var title, body string
	switch kind {
	case models.TriggerDayOfReminder:
		title = "Court hearing today"
		body = fmt.Sprintf("Case %s is heard today, %s. Scan the QR code or enter the manual code at the court to mark your attendance.", h.CaseID, hearingWhen(h))
	default:
		title = "Court hearing next week"
		body = fmt.Sprintf("Case %s is scheduled for %s. Your attendance is required.", h.CaseID, hearingWhen(h))
	}
	if h.Location != "" {
		body += " Location: " + h.Location + "."
	}
	return models.NewNotificationRequest(kind, to, title, body, models.EntityHearingSession, h.ID)
}

func witnessAbsentRequest(h models.HearingSession, next *models.HearingSession, to models.Recipient, recordID string) models.NotificationRequest {
	body := fmt.Sprintf("You did not attend the hearing of case %s on %s. Failure to appear when summoned may lead to a bailable warrant or other legal consequences.",
		h.CaseID, h.HearingDate.Format(whenLayout))
	if next != nil {
		body += " Next hearing: " + hearingWhen(*next) + "."
	} else {
		body += " The court will inform you of the next hearing date."
	}
	return models.NewNotificationRequest(models.TriggerWitnessAbsent, to, "Missed court hearing", body, models.EntityAttendanceRecord, recordID)
}

func officerAbsentRequest(h models.HearingSession, to models.Recipient, recordID string) models.NotificationRequest {
	body := fmt.Sprintf("You were marked absent for the hearing of case %s on %s. Submit the reason for your absence.",
		h.CaseID, h.HearingDate.Format(whenLayout))
	return models.NewNotificationRequest(models.TriggerOfficerAbsent, to, "Absence reason required", body, models.EntityAttendanceRecord, recordID)
}

func bothAbsentRequest(h models.HearingSession, to models.Recipient, officers, witnesses []string) models.NotificationRequest {
	body := fmt.Sprintf("Neither the investigating officer (%s) nor the witnesses (%s) attended the hearing of case %s on %s.",
		strings.Join(officers, ", "), strings.Join(witnesses, ", "), h.CaseID, h.HearingDate.Format(whenLayout))
	return models.NewNotificationRequest(models.TriggerBothAbsent, to, "Officer and witnesses absent", body, models.EntityHearingSession, h.ID)
}

func escalationRequest(officer models.Attendee, to models.Recipient, consecutive int, h models.HearingSession) models.NotificationRequest {
	body := fmt.Sprintf("%s has missed %d consecutive hearings, most recently case %s on %s.",
		officer.FullName, consecutive, h.CaseID, h.HearingDate.Format(whenLayout))
	return models.NewNotificationRequest(models.TriggerSupervisorEscalation, to, "Repeated officer absence", body, models.EntityHearingSession, h.ID)
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
