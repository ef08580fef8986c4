package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-queue-api/internal/service"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
	"github.com/noah-isme/clinic-queue-api/pkg/response"
)

// AvailabilityHandler manages weekly plans, extensions and leave markers.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler creates a new availability handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// WeeklyPlan godoc
// @Summary Get weekly availability
// @Tags Availability
// @Produce json
// @Param id path string true "Doctor ID"
// @Success 200 {object} response.Envelope
// @Router /doctors/{id}/availability [get]
func (h *AvailabilityHandler) WeeklyPlan(c *gin.Context) {
	plan, err := h.service.GetWeeklyPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// UpsertWeeklyPlan godoc
// @Summary Replace weekly availability for one weekday
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Doctor ID"
// @Param payload body service.UpsertAvailabilityRequest true "Sessions payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /doctors/{id}/availability [put]
func (h *AvailabilityHandler) UpsertWeeklyPlan(c *gin.Context) {
	var req service.UpsertAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.DoctorID = c.Param("id")

	plan, err := h.service.UpsertWeeklyPlan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// ExtendSession godoc
// @Summary Extend a session on a date
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Doctor ID"
// @Param payload body service.ExtendSessionRequest true "Extension payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /doctors/{id}/extensions [post]
func (h *AvailabilityHandler) ExtendSession(c *gin.Context) {
	var req service.ExtendSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.DoctorID = c.Param("id")

	ext, err := h.service.ExtendSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ext)
}

// MarkLeave godoc
// @Summary Mark leave slots on a date
// @Description Stores leave markers and cancels bookings they overlap
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Doctor ID"
// @Param payload body service.MarkLeaveRequest true "Leave payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /doctors/{id}/leave [post]
func (h *AvailabilityHandler) MarkLeave(c *gin.Context) {
	var req service.MarkLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.DoctorID = c.Param("id")

	slots, err := h.service.MarkLeave(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slots)
}

// RemoveLeave godoc
// @Summary Remove one leave marker
// @Tags Availability
// @Produce json
// @Param id path string true "Doctor ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param slot_time query string true "Slot time (HH:MM)"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /doctors/{id}/leave [delete]
func (h *AvailabilityHandler) RemoveLeave(c *gin.Context) {
	date := c.Query("date")
	slotTime := c.Query("slot_time")
	if date == "" || slotTime == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date and slot_time required"))
		return
	}

	if err := h.service.RemoveLeave(c.Request.Context(), c.Param("id"), date, slotTime); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
