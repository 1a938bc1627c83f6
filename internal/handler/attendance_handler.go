package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chayanC7mondal/project-sync-sub000/internal/dto"
	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	appErrors "github.com/chayanC7mondal/project-sync-sub000/pkg/errors"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/response"
)

type attendanceService interface {
	MarkSelf(ctx context.Context, claim models.AttendanceClaim) (*models.MarkResult, error)
	OverrideByLiaison(ctx context.Context, recordID string, req dto.OverrideAttendanceRequest, actorID string) (*models.MarkResult, error)
	SubmitAbsenceReason(ctx context.Context, recordID, attendeeID string, req dto.AbsenceReasonRequest) (*models.AttendanceRecord, error)
}

// AttendanceHandler exposes attendance marking endpoints.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Mark godoc
// @Summary Mark own attendance with a hearing code
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.MarkAttendanceRequest true "Code or QR payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /attendance/mark [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	who, err := identityFromClaims(claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.mark(c, dto.MarkKindCode, who)
}

// Scan godoc
// @Summary Mark attendance from a scanned QR code
// @Description Authenticated callers mark themselves. Anonymous witnesses must send witnessId and witnessName.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.MarkAttendanceRequest true "QR payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /attendance/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	if claims := claimsFromContext(c); claims != nil {
		who, err := identityFromClaims(claims)
		if err != nil {
			response.Error(c, err)
			return
		}
		h.mark(c, dto.MarkKindQR, who)
		return
	}
	h.mark(c, dto.MarkKindQR, dto.AttendeeIdentity{Role: models.AttendeeRoleWitness})
}

func (h *AttendanceHandler) mark(c *gin.Context, defaultKind dto.MarkKind, who dto.AttendeeIdentity) {
	var req dto.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.Kind == "" {
		req.Kind = defaultKind
	}
	if who.ID == "" {
		who.ID = strings.TrimSpace(req.WitnessID)
		who.Name = strings.TrimSpace(req.WitnessName)
		if who.ID == "" || who.Name == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "witnessId and witnessName are required without a token"))
			return
		}
	}

	claim, err := req.Normalize(who)
	if err != nil {
		response.Error(c, err)
		return
	}
	claim.ClientIP = c.ClientIP()
	result, err := h.service.MarkSelf(c.Request.Context(), claim)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if result.Outcome == models.MarkOutcomeAlreadyMarked {
		status = http.StatusOK
	}
	response.JSON(c, status, dto.NewMarkAttendanceResponse(result), nil)
}

// Override godoc
// @Summary Mark a pending record on an attendee's behalf
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance record ID"
// @Param payload body dto.OverrideAttendanceRequest true "present or late"
// @Success 200 {object} response.Envelope
// @Router /attendance/records/{id}/override [post]
func (h *AttendanceHandler) Override(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.OverrideAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.OverrideByLiaison(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewMarkAttendanceResponse(result), nil)
}

// AbsenceReason godoc
// @Summary Explain an absence
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance record ID"
// @Param payload body dto.AbsenceReasonRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /attendance/records/{id}/absence-reason [put]
func (h *AttendanceHandler) AbsenceReason(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AbsenceReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.SubmitAbsenceReason(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

func identityFromClaims(claims *models.JWTClaims) (dto.AttendeeIdentity, error) {
	role, ok := claims.Role.AttendeeRole()
	if !ok {
		return dto.AttendeeIdentity{}, appErrors.Clone(appErrors.ErrForbidden, "only officers and witnesses mark attendance")
	}
	return dto.AttendeeIdentity{ID: claims.UserID, Name: claims.FullName, Role: role}, nil
}
