package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/medbook/scheduling-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// Error writes an application error with its matching HTTP status. Internal
// errors never leak their cause to the client.
func Error(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrConflict:
		status = http.StatusConflict
	case apperrors.ErrForbidden:
		status = http.StatusForbidden
	case apperrors.ErrValidation:
		status = http.StatusBadRequest
	case apperrors.ErrPolicyDenied:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrUnauthorized:
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		c.Error(err)
		c.JSON(status, NewErrorResponse("internal server error"))
		return
	}
	c.JSON(status, NewErrorResponse(appErr.Message))
}
