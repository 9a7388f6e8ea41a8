package slot

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/internal/handler"
	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/service/priority"
	"github.com/medbook/scheduling-api/internal/service/slot"
	"github.com/medbook/scheduling-api/pkg/clock"
)

const defaultBrowseDays = 30

type RankPatientsRequest struct {
	PatientIDs []uuid.UUID `json:"patient_ids" binding:"required,min=1"`
}

type Handler struct {
	service  *slot.Service
	priority *priority.Service
	clock    clock.Clock
}

func NewHandler(service *slot.Service, prioritySvc *priority.Service, clk clock.Clock) *Handler {
	return &Handler{service: service, priority: prioritySvc, clock: clk}
}

// RegisterDoctorRoutes mounts calendar management for the signed-in doctor.
func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	slots := r.Group("/slots")
	{
		slots.POST("", h.CreateSlot)
		slots.POST("/bulk", h.BulkCreateSlots)
		slots.POST("/generate", h.GenerateSlots)
		slots.GET("", h.ListSlots)
		slots.POST("/:id/block", h.BlockSlot)
		slots.POST("/:id/rank", h.RankPatients)
		slots.DELETE("/recurrence/:groupId", h.DeleteRecurrenceGroup)
	}
}

// RegisterPatientRoutes mounts slot browsing under the doctor directory.
func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors/:id")
	{
		doctors.GET("/slots", h.ListAvailableSlots)
		doctors.GET("/slots/dates", h.ListAvailableDates)
		doctors.GET("/slots/emergency", h.ListEmergencySlots)
	}
}

func (h *Handler) CreateSlot(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var req model.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.Create(c.Request.Context(), doctorID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) BulkCreateSlots(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var req model.BulkCreateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.BulkCreate(c.Request.Context(), doctorID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"created": len(created),
		"slots":   created,
	}))
}

func (h *Handler) GenerateSlots(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var req model.GenerateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.Generate(c.Request.Context(), doctorID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"created": len(created),
		"slots":   created,
	}))
}

func (h *Handler) ListSlots(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	filters := &model.SlotFilters{
		DoctorID: doctorID,
		Status:   model.SlotStatus(c.Query("status")),
		SlotType: model.SlotType(c.Query("slot_type")),
	}
	var err error
	filters.StartDate, filters.EndDate, err = h.parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	slots, err := h.service.ListForDoctor(c.Request.Context(), filters)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

func (h *Handler) BlockSlot(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid slot ID"))
		return
	}

	if err := h.service.Block(c.Request.Context(), doctorID, slotID); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

// RankPatients orders candidate patients for one of the doctor's slots by
// priority score. Patients the slot's access rules exclude are omitted.
func (h *Handler) RankPatients(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid slot ID"))
		return
	}

	var req RankPatientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	s, err := h.service.Get(c.Request.Context(), slotID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	if s.DoctorID != doctorID {
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("slot belongs to another doctor"))
		return
	}

	scores, err := h.priority.RankForSlot(c.Request.Context(), s, req.PatientIDs)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(scores))
}

func (h *Handler) DeleteRecurrenceGroup(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	groupID, err := uuid.Parse(c.Param("groupId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid group ID"))
		return
	}

	deleted, err := h.service.DeleteRecurrenceGroup(c.Request.Context(), doctorID, groupID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": deleted}))
}

// parseRange reads an optional from/to query pair, defaulting to the next
// browse window.
func (h *Handler) parseRange(c *gin.Context) (time.Time, time.Time, error) {
	now := h.clock.Now()
	from := now
	to := now.AddDate(0, 0, defaultBrowseDays)

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		// Inclusive end date.
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func (h *Handler) ListAvailableSlots(c *gin.Context) {
	patientID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	from, to, err := h.parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	slots, err := h.service.ListAvailableForPatient(c.Request.Context(), doctorID, patientID, from, to)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

func (h *Handler) ListAvailableDates(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	from, to, err := h.parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	dates, err := h.service.AvailableDates(c.Request.Context(), doctorID, from, to)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(dates))
}

func (h *Handler) ListEmergencySlots(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	from, to, err := h.parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	slots, err := h.service.ListEmergency(c.Request.Context(), doctorID, from, to)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}
