package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-queue-api/internal/middleware"
	"github.com/noah-isme/clinic-queue-api/internal/service"
	"github.com/noah-isme/clinic-queue-api/pkg/response"
)

// QueueHandler serves live queue views and the manual sweep trigger.
type QueueHandler struct {
	service *service.QueueService
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(svc *service.QueueService) *QueueHandler {
	return &QueueHandler{service: svc}
}

// DoctorQueue godoc
// @Summary Live queue for a doctor-day
// @Description Returns the ordered queue with thresholds and current delay
// @Tags Queue
// @Produce json
// @Param id path string true "Doctor ID"
// @Param date query string false "Date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Router /doctors/{id}/queue [get]
func (h *QueueHandler) DoctorQueue(c *gin.Context) {
	var date time.Time
	if c.Query("date") == "" {
		// Same local-midnight convention the booking and delay services use.
		now := time.Now()
		date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	} else {
		parsed, err := dateQuery(c, "date")
		if err != nil {
			response.Error(c, err)
			return
		}
		date = parsed
	}

	start := time.Now()
	snapshot, cached, err := h.service.DoctorQueue(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cached)
	meta := middleware.ExtractMeta(c)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, snapshot, nil, meta)
}

// Sweep godoc
// @Summary Run the status sweep now
// @Description Applies every due PENDING/SKIPPED transition for the date
// @Tags Queue
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /queue/sweep [post]
func (h *QueueHandler) Sweep(c *gin.Context) {
	date, err := dateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}

	applied, err := h.service.SweepDate(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"transitions": applied}, nil)
}
