package booking

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/internal/handler"
	"github.com/medbook/scheduling-api/internal/model"
	"github.com/medbook/scheduling-api/internal/service/booking"
)

type DoctorCancelRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=1000"`
}

type Handler struct {
	service *booking.Service
}

func NewHandler(service *booking.Service) *Handler {
	return &Handler{service: service}
}

// RegisterPatientRoutes mounts the patient-facing booking lifecycle.
func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.ListOwnBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/triage", h.SubmitTriage)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/reschedule", h.RescheduleBooking)
	}
}

// RegisterDoctorRoutes mounts calendar management and triage review.
func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.GET("", h.ListDoctorBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/complete", h.CompleteBooking)
		bookings.POST("/:id/no-show", h.MarkNoShow)
		bookings.POST("/:id/cancel", h.CancelByDoctor)
	}

	triage := r.Group("/triage")
	{
		triage.GET("/pending", h.ListPendingTriage)
		triage.POST("/:id/review", h.ReviewTriage)
	}
}

func bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid booking ID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) CreateBooking(c *gin.Context) {
	patientID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var req model.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.Create(c.Request.Context(), patientID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListOwnBookings(c *gin.Context) {
	patientID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	filters := &model.BookingFilters{
		PatientID:   patientID,
		Status:      model.BookingStatus(c.Query("status")),
		IncludePast: c.Query("include_past") == "true",
	}

	bookings, err := h.service.List(c.Request.Context(), filters, &page)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(bookings))
}

func (h *Handler) ListDoctorBookings(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	filters := &model.BookingFilters{
		DoctorID:    doctorID,
		Status:      model.BookingStatus(c.Query("status")),
		IncludePast: c.Query("include_past") == "true",
	}

	bookings, err := h.service.List(c.Request.Context(), filters, &page)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(bookings))
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	b, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(b))
}

func (h *Handler) SubmitTriage(c *gin.Context) {
	patientID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req model.SubmitTriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	triage, err := h.service.SubmitTriage(c.Request.Context(), patientID, id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(triage))
}

func (h *Handler) CancelBooking(c *gin.Context) {
	patientID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req model.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	cancelled, err := h.service.Cancel(c.Request.Context(), patientID, id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(cancelled))
}

func (h *Handler) RescheduleBooking(c *gin.Context) {
	patientID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req model.RescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	replacement, err := h.service.Reschedule(c.Request.Context(), patientID, id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(replacement))
}

func (h *Handler) CompleteBooking(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}
	id, ok := bookingID(c)
	if !ok {
		return
	}

	b, err := h.service.MarkCompleted(c.Request.Context(), doctorID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(b))
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}
	id, ok := bookingID(c)
	if !ok {
		return
	}

	b, err := h.service.MarkNoShow(c.Request.Context(), doctorID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(b))
}

func (h *Handler) CancelByDoctor(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req DoctorCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	cancelled, err := h.service.CancelByDoctor(c.Request.Context(), doctorID, id, req.Reason)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(cancelled))
}

func (h *Handler) ListPendingTriage(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	list, err := h.service.ListPendingTriage(c.Request.Context(), doctorID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) ReviewTriage(c *gin.Context) {
	doctorID, ok := handler.SubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	triageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid triage ID"))
		return
	}

	var req model.ReviewTriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	reviewed, err := h.service.ReviewTriage(c.Request.Context(), doctorID, triageID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(reviewed))
}
