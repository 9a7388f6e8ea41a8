package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/internal/handler"
	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/service/doctor"
	"github.com/medbook/scheduling-api/internal/service/priority"
)

type ReserveRequest struct {
	Percent float64 `json:"percent" binding:"required,gt=0"`
}

type ReleaseRequest struct {
	HoursAhead int `json:"hours_ahead" binding:"required,min=1"`
}

type Handler struct {
	service  *doctor.Service
	priority *priority.Service
}

func NewHandler(service *doctor.Service, prioritySvc *priority.Service) *Handler {
	return &Handler{service: service, priority: prioritySvc}
}

// RegisterPatientRoutes mounts the doctor directory for patients.
func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
		doctors.GET("/:id/scarcity", h.GetScarcity)
	}
}

// RegisterDoctorRoutes mounts profile and slot pool management.
func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	me := r.Group("/doctors/me")
	{
		me.GET("", h.GetProfile)
		me.PUT("", h.UpdateProfile)
		me.GET("/scarcity", h.GetOwnScarcity)
		me.POST("/slots/reserve", h.ReserveSlots)
		me.POST("/slots/release", h.ReleaseSlots)
	}
}

func (h *Handler) ListDoctors(c *gin.Context) {
	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	doctors, err := h.service.List(c.Request.Context(), &page)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	d, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(d))
}

func (h *Handler) GetScarcity(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	result, err := h.priority.Scarcity(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) GetProfile(c *gin.Context) {
	id, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	d, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(d))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var req model.UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	d, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(d))
}

func (h *Handler) GetOwnScarcity(c *gin.Context) {
	id, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	result, err := h.priority.Scarcity(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) ReserveSlots(c *gin.Context) {
	id, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	reserved, err := h.priority.ReserveForUrgent(c.Request.Context(), id, req.Percent)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"reserved": reserved}))
}

func (h *Handler) ReleaseSlots(c *gin.Context) {
	id, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var req ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	released, err := h.priority.ReleaseUnused(c.Request.Context(), id, req.HoursAhead)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"released": released}))
}
