package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	appErrors "github.com/chayanC7mondal/project-sync-sub000/pkg/errors"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/hearingcode"
)

// MarkKind selects how the attendee presented the hearing code.
type MarkKind string

const (
	MarkKindCode MarkKind = "code"
	MarkKindQR   MarkKind = "qr"
)

// MarkAttendanceRequest is the POST /attendance/mark and /attendance/scan payload.
// Kind "code" carries a manually typed code; kind "qr" carries the scanned
// payload, either the raw token or a JSON blob.
type MarkAttendanceRequest struct {
	Kind        MarkKind         `json:"kind"`
	CaseID      string           `json:"caseId"`
	HearingDate string           `json:"hearingDate,omitempty"`
	Code        string           `json:"code,omitempty"`
	QRData      string           `json:"qrData,omitempty"`
	Location    *models.GeoPoint `json:"location,omitempty"`

	WitnessID   string `json:"witnessId,omitempty"`
	WitnessName string `json:"witnessName,omitempty"`
}

// AttendeeIdentity is who the claim is made for, resolved by the handler.
type AttendeeIdentity struct {
	ID   string
	Name string
	Role models.AttendeeRole
}

type qrPayload struct {
	CaseID      string `json:"caseId"`
	HearingDate string `json:"hearingDate"`
	Token       string `json:"token"`
}

// Normalize converts the transport union into an AttendanceClaim.
func (r MarkAttendanceRequest) Normalize(who AttendeeIdentity) (models.AttendanceClaim, error) {
	claim := models.AttendanceClaim{
		CaseID:       strings.TrimSpace(r.CaseID),
		AttendeeID:   strings.TrimSpace(who.ID),
		AttendeeName: strings.TrimSpace(who.Name),
		Role:         who.Role,
		Location:     r.Location,
	}
	if claim.AttendeeID == "" {
		return claim, appErrors.Clone(appErrors.ErrValidation, "attendee identity is required")
	}
	date := strings.TrimSpace(r.HearingDate)

	switch r.Kind {
	case MarkKindCode:
		claim.Method = models.AttendanceMethodManual
		claim.Token = strings.TrimSpace(r.Code)
		if claim.Token == "" {
			return claim, appErrors.Clone(appErrors.ErrValidation, "code is required")
		}
	case MarkKindQR:
		claim.Method = models.AttendanceMethodQR
		caseID, qrDate, token, err := parseQRData(r.QRData)
		if err != nil {
			return claim, err
		}
		claim.Token = token
		if claim.CaseID == "" {
			claim.CaseID = caseID
		} else if caseID != "" && caseID != claim.CaseID {
			return claim, appErrors.Clone(appErrors.ErrValidation, "qr payload does not match caseId")
		}
		if date == "" {
			date = qrDate
		}
	default:
		return claim, appErrors.Clone(appErrors.ErrValidation, "kind must be code or qr")
	}

	if claim.CaseID == "" {
		return claim, appErrors.Clone(appErrors.ErrValidation, "caseId is required")
	}
	if date != "" {
		parsed, err := time.Parse(hearingcode.DateLayout, date)
		if err != nil {
			return claim, appErrors.Clone(appErrors.ErrValidation, "hearingDate must be YYYY-MM-DD")
		}
		claim.HearingDate = &parsed
	}
	return claim, nil
}

func parseQRData(raw string) (caseID, date, token string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", "", appErrors.Clone(appErrors.ErrValidation, "qrData is required")
	}
	if strings.HasPrefix(raw, "{") {
		var payload qrPayload
		if jsonErr := json.Unmarshal([]byte(raw), &payload); jsonErr != nil {
			return "", "", "", appErrors.Clone(appErrors.ErrValidation, "qrData is not valid JSON")
		}
		token = strings.TrimSpace(payload.Token)
		if token == "" {
			return "", "", "", appErrors.Clone(appErrors.ErrValidation, "qrData token is required")
		}
		caseID, date = strings.TrimSpace(payload.CaseID), strings.TrimSpace(payload.HearingDate)
		if caseID == "" {
			caseID, date = tokenContext(token)
		}
		return caseID, date, token, nil
	}
	caseID, date = tokenContext(raw)
	return caseID, date, raw, nil
}

func tokenContext(token string) (string, string) {
	caseID, date, ok := hearingcode.ParseQRToken(token)
	if !ok {
		return "", ""
	}
	return caseID, date.Format(hearingcode.DateLayout)
}

// OverrideAttendanceRequest is the liaison override payload.
type OverrideAttendanceRequest struct {
	Status models.AttendanceStatus `json:"status" validate:"required,oneof=present late"`
}

// AbsenceReasonRequest carries an officer's explanation for an absence.
type AbsenceReasonRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

// MarkAttendanceResponse is returned from the mark and scan endpoints.
type MarkAttendanceResponse struct {
	Outcome     models.MarkOutcome      `json:"outcome"`
	RecordID    string                  `json:"recordId"`
	Status      models.AttendanceStatus `json:"status"`
	Method      models.AttendanceMethod `json:"method"`
	MarkedAt    *time.Time              `json:"markedAt,omitempty"`
	HearingID   string                  `json:"hearingId"`
	CaseID      string                  `json:"caseId"`
	HearingDate string                  `json:"hearingDate"`
	CourtName   string                  `json:"courtName,omitempty"`
}

// NewMarkAttendanceResponse flattens a mark result for the wire.
func NewMarkAttendanceResponse(res *models.MarkResult) MarkAttendanceResponse {
	out := MarkAttendanceResponse{Outcome: res.Outcome}
	if res.Record != nil {
		out.RecordID = res.Record.ID
		out.Status = res.Record.Status
		out.Method = res.Record.Method
		out.MarkedAt = res.Record.MarkedAt
	}
	if res.Hearing != nil {
		out.HearingID = res.Hearing.ID
		out.CaseID = res.Hearing.CaseID
		out.HearingDate = res.Hearing.DateString()
		out.CourtName = res.Hearing.CourtName
	}
	return out
}
