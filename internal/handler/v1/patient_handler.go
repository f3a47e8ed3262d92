package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/remedyhq/remedy/internal/domain/patient"
	"github.com/remedyhq/remedy/internal/service"
)

type PatientHandler struct {
	svc *service.PatientService
}

func NewPatientHandler(svc *service.PatientService) *PatientHandler {
	return &PatientHandler{svc: svc}
}

type createPatientRequest struct {
	FirstName   string     `json:"firstName" binding:"required"`
	LastName    string     `json:"lastName" binding:"required"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Email       string     `json:"email" binding:"required,email"`
	Phone       string     `json:"phone"`
	CaregiverID *uuid.UUID `json:"caregiverId"`
	Notes       string     `json:"notes"`
}

func (h *PatientHandler) Create(c *gin.Context) {
	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &patient.CreatePatientCommand{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		CaregiverID: req.CaregiverID,
		Notes:       req.Notes,
	}
	if req.DateOfBirth != nil {
		cmd.DateOfBirth = *req.DateOfBirth
	}

	p, err := h.svc.CreatePatient(c.Request.Context(), cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, p)
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetPatient(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, p)
}

func (h *PatientHandler) List(c *gin.Context) {
	caregiverID, ok := parseQueryUUID(c, "caregiverId")
	if !ok {
		return
	}

	q := &patient.ListPatientsQuery{
		Search:      c.Query("search"),
		CaregiverID: caregiverID,
		Page:        parseQueryInt(c, "page", 1),
		PageSize:    parseQueryInt(c, "pageSize", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := patient.Status(raw)
		q.Status = &status
	}

	page, err := h.svc.ListPatients(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, page)
}
