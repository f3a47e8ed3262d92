package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/remedyhq/remedy/internal/domain/routine"
	"github.com/remedyhq/remedy/internal/service"
)

type RoutineHandler struct {
	svc *service.RoutineService
}

func NewRoutineHandler(svc *service.RoutineService) *RoutineHandler {
	return &RoutineHandler{svc: svc}
}

type createRoutineRequest struct {
	PatientID  uuid.UUID      `json:"patientId" binding:"required"`
	ProviderID uuid.UUID      `json:"providerId" binding:"required"`
	Name       string         `json:"name"`
	Type       routine.Type   `json:"type" binding:"required"`
	Active     *bool          `json:"active"`
	Items      []routine.Item `json:"items" binding:"required"`
}

type updateRoutineRequest struct {
	Name   *string         `json:"name"`
	Type   *routine.Type   `json:"type"`
	Active *bool           `json:"active"`
	Items  *[]routine.Item `json:"items"`
}

func (h *RoutineHandler) Create(c *gin.Context) {
	var req createRoutineRequest
	if !bindJSON(c, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	r, err := h.svc.CreateRoutine(c.Request.Context(), &routine.CreateRoutineCommand{
		PatientID:  req.PatientID,
		ProviderID: req.ProviderID,
		Name:       req.Name,
		Type:       req.Type,
		Active:     active,
		Items:      req.Items,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, r)
}

func (h *RoutineHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	r, err := h.svc.GetRoutine(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, r)
}

func (h *RoutineHandler) Update(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req updateRoutineRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.svc.UpdateRoutine(c.Request.Context(), id, &routine.UpdateRoutineCommand{
		Name:   req.Name,
		Type:   req.Type,
		Active: req.Active,
		Items:  req.Items,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, r)
}

func (h *RoutineHandler) Delete(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteRoutine(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"deleted": id})
}

func (h *RoutineHandler) List(c *gin.Context) {
	patientID, ok := parseQueryUUID(c, "patientId")
	if !ok {
		return
	}
	providerID, ok := parseQueryUUID(c, "providerId")
	if !ok {
		return
	}

	q := &routine.ListRoutinesQuery{
		PatientID:  patientID,
		ProviderID: providerID,
		ActiveOnly: c.Query("active") == "true",
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "pageSize", 20),
	}

	page, err := h.svc.ListRoutines(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, page)
}
