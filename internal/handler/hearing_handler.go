package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chayanC7mondal/project-sync-sub000/internal/dto"
	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	appErrors "github.com/chayanC7mondal/project-sync-sub000/pkg/errors"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/response"
)

type hearingService interface {
	Schedule(ctx context.Context, req dto.ScheduleHearingRequest, actorID string) (*dto.HearingDetail, error)
	Get(ctx context.Context, id string) (*dto.HearingDetail, error)
	ListAttendance(ctx context.Context, id string) ([]models.AttendanceRecord, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateHearingStatusRequest, actorID string) (*models.HearingSession, error)
	Sheet(ctx context.Context, id string) ([]byte, string, error)
	RosterCSV(ctx context.Context, id string) ([]byte, string, error)
	QRImage(ctx context.Context, id string, size int) ([]byte, error)
}

// HearingHandler exposes hearing scheduling and export endpoints.
type HearingHandler struct {
	service hearingService
}

// NewHearingHandler constructs the handler.
func NewHearingHandler(service hearingService) *HearingHandler {
	return &HearingHandler{service: service}
}

// Create godoc
// @Summary Schedule a hearing with its roster
// @Tags Hearings
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleHearingRequest true "Hearing"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /hearings [post]
func (h *HearingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ScheduleHearingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.service.Schedule(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Get a hearing with its roster
// @Tags Hearings
// @Produce json
// @Param id path string true "Hearing ID"
// @Success 200 {object} response.Envelope
// @Router /hearings/{id} [get]
func (h *HearingHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Move a hearing along its lifecycle
// @Tags Hearings
// @Accept json
// @Produce json
// @Param id path string true "Hearing ID"
// @Param payload body dto.UpdateHearingStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /hearings/{id}/status [patch]
func (h *HearingHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateHearingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	hearing, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hearing, nil)
}

// Attendance godoc
// @Summary List attendance records of a hearing
// @Tags Hearings
// @Produce json
// @Param id path string true "Hearing ID"
// @Success 200 {object} response.Envelope
// @Router /hearings/{id}/attendance [get]
func (h *HearingHandler) Attendance(c *gin.Context) {
	records, err := h.service.ListAttendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil, map[string]interface{}{"summary": dto.Tally(records)})
}

// Sheet godoc
// @Summary Download the printable attendance sheet
// @Tags Hearings
// @Produce application/pdf
// @Param id path string true "Hearing ID"
// @Success 200 {file} binary
// @Router /hearings/{id}/sheet.pdf [get]
func (h *HearingHandler) Sheet(c *gin.Context) {
	raw, name, err := h.service.Sheet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, name, "application/pdf", raw)
}

// RosterCSV godoc
// @Summary Download the roster as CSV
// @Tags Hearings
// @Produce text/csv
// @Param id path string true "Hearing ID"
// @Success 200 {file} binary
// @Router /hearings/{id}/attendance.csv [get]
func (h *HearingHandler) RosterCSV(c *gin.Context) {
	raw, name, err := h.service.RosterCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, name, "text/csv; charset=utf-8", raw)
}

// QR godoc
// @Summary Render the hearing QR code
// @Tags Hearings
// @Produce image/png
// @Param id path string true "Hearing ID"
// @Param size query int false "Edge length in pixels"
// @Success 200 {file} binary
// @Router /hearings/{id}/qr.png [get]
func (h *HearingHandler) QR(c *gin.Context) {
	raw, err := h.service.QRImage(c.Request.Context(), c.Param("id"), parseQueryInt(c, "size", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", raw)
}

