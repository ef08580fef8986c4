package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-queue-api/internal/service"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
	"github.com/noah-isme/clinic-queue-api/pkg/response"
)

// ClinicHandler handles clinic CRUD endpoints.
type ClinicHandler struct {
	service *service.ClinicService
}

// NewClinicHandler creates a new clinic handler.
func NewClinicHandler(svc *service.ClinicService) *ClinicHandler {
	return &ClinicHandler{service: svc}
}

// List godoc
// @Summary List clinics
// @Tags Clinics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clinics [get]
func (h *ClinicHandler) List(c *gin.Context) {
	clinics, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clinics, nil)
}

// Get godoc
// @Summary Get clinic
// @Tags Clinics
// @Produce json
// @Param id path string true "Clinic ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /clinics/{id} [get]
func (h *ClinicHandler) Get(c *gin.Context) {
	clinic, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clinic, nil)
}

// Create godoc
// @Summary Create clinic
// @Tags Clinics
// @Accept json
// @Produce json
// @Param payload body service.ClinicRequest true "Clinic payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /clinics [post]
func (h *ClinicHandler) Create(c *gin.Context) {
	var req service.ClinicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	clinic, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, clinic)
}

// Update godoc
// @Summary Update clinic
// @Tags Clinics
// @Accept json
// @Produce json
// @Param id path string true "Clinic ID"
// @Param payload body service.ClinicRequest true "Clinic payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /clinics/{id} [put]
func (h *ClinicHandler) Update(c *gin.Context) {
	var req service.ClinicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	clinic, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clinic, nil)
}
