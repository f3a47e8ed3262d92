package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/remedyhq/remedy/internal/schedule"
	"github.com/remedyhq/remedy/internal/service"
)

type ScheduleHandler struct {
	svc *service.ScheduleService
}

func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{svc: svc}
}

type scheduleResponse struct {
	PatientID string           `json:"patientId"`
	Date      string           `json:"date"`
	View      service.View     `json:"view"`
	Entries   []schedule.Entry `json:"entries"`
}

// Get returns the patient's schedule for a single day.
//
// GET /api/v1/patients/:id/schedule?date=2024-01-02&view=patient
//
// The clock is sampled here and only here: omitting date means today, and
// everything below this handler works off the explicit date.
func (h *ScheduleHandler) Get(c *gin.Context) {
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation(schedule.DateLayout, raw, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid date: expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	view := service.View(c.DefaultQuery("view", string(service.ViewCaregiver)))

	entries, err := h.svc.Schedule(c.Request.Context(), patientID, day, view)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if entries == nil {
		entries = []schedule.Entry{}
	}
	respondOK(c, scheduleResponse{
		PatientID: patientID.String(),
		Date:      day.Format(schedule.DateLayout),
		View:      view,
		Entries:   entries,
	})
}
