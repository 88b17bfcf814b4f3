package controllers

import (
	"github.com/gin-gonic/gin"

	"banksec/ai"
	"banksec/database"
)

// AIService is the analysis backend used by the controllers.
// Tests swap in a deterministic implementation.
var AIService ai.Service = ai.NewOpenAIService()

// User role constants
const (
	RoleAdmin           = database.RoleAdmin
	RoleSecurityOfficer = database.RoleSecurityOfficer
	RoleEmployee        = database.RoleEmployee
)

// Permission types used by the file endpoints. permission_type itself is an
// open string column; these are just the values the file handlers check.
const (
	PermissionRead  = "READ"
	PermissionWrite = "WRITE"
)

// currentUserID returns the authenticated user id set by the auth middleware
func currentUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// currentRole returns the authenticated role set by the auth middleware
func currentRole(c *gin.Context) string {
	v, exists := c.Get("role")
	if !exists {
		return ""
	}
	role, _ := v.(string)
	return role
}

// isStaff reports whether the request comes from a privileged role
func isStaff(c *gin.Context) bool {
	return database.IsStaffRole(currentRole(c))
}
