package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/clinic-queue-api/internal/service"
)

func TestBookingHandlerDaySlotsRequiresDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookingHandler(&service.BookingService{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/doctors/d1/slots", nil)
	c.Params = gin.Params{{Key: "id", Value: "d1"}}

	handler.DaySlots(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingHandlerBookRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookingHandler(&service.BookingService{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Book(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingHandlerWalkInRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookingHandler(&service.BookingService{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/appointments/walk-in", strings.NewReader("["))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.WalkIn(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
