package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medbook/scheduling-api/internal/handler"
	"github.com/medbook/scheduling-api/internal/model"
	authsvc "github.com/medbook/scheduling-api/internal/service/auth"
	"github.com/medbook/scheduling-api/internal/service/patient"
)

type Handler struct {
	service  *authsvc.Service
	patients *patient.Service
}

func NewHandler(service *authsvc.Service, patients *patient.Service) *Handler {
	return &Handler{service: service, patients: patients}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	a := r.Group("/auth")
	{
		a.POST("/patients/register", h.RegisterPatient)
		a.POST("/patients/login", h.LoginPatient)
		a.POST("/doctors/login", h.LoginDoctor)
		a.POST("/refresh", h.Refresh)
	}
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	var req model.RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.patients.Register(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) LoginPatient(c *gin.Context) {
	var req authsvc.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	pair, patient, err := h.service.LoginPatient(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"tokens":  pair,
		"patient": patient,
	}))
}

func (h *Handler) LoginDoctor(c *gin.Context) {
	var req authsvc.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	pair, doctor, err := h.service.LoginDoctor(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"tokens": pair,
		"doctor": doctor,
	}))
}

func (h *Handler) Refresh(c *gin.Context) {
	var req authsvc.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(pair))
}
