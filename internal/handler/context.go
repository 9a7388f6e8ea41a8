package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medbook/scheduling-api/pkg/auth"
)

// Context keys set by the auth middleware.
const (
	CtxSubjectID = "subject_id"
	CtxRole      = "role"
	CtxEmail     = "email"
)

// SubjectID returns the authenticated caller's id.
func SubjectID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(CtxSubjectID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// RoleOf returns the authenticated caller's role.
func RoleOf(c *gin.Context) (auth.Role, bool) {
	v, ok := c.Get(CtxRole)
	if !ok {
		return "", false
	}
	role, ok := v.(auth.Role)
	return role, ok
}
