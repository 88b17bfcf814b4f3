package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"banksec/ai"
	"banksec/config"
	"banksec/database"
)

// PermissionRequest contains the fields of a grant. The grantor is always the
// authenticated caller, never client-supplied.
type PermissionRequest struct {
	UserID         uint       `json:"user_id" binding:"required"`
	Resource       string     `json:"resource" binding:"required"`
	PermissionType string     `json:"permission_type" binding:"required"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// AccessCheckRequest names one (resource, permission_type) pair to check
type AccessCheckRequest struct {
	Resource       string `json:"resource" binding:"required"`
	PermissionType string `json:"permission_type" binding:"required"`
	UserID         *uint  `json:"user_id"`
}

// CreatePermission grants a permission (staff only via routing). Granting an
// existing (user, resource, permission_type) key updates the row in place.
func CreatePermission(c *gin.Context) {
	var request PermissionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	var target database.User
	if err := database.DB.First(&target, request.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		}
		return
	}

	grantorID, _ := currentUserID(c)
	perm, err := database.GrantPermission(grantorID, request.UserID, request.Resource, request.PermissionType, request.ExpiresAt)
	if err != nil {
		log.Printf("Permission grant DB error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to grant permission"})
		return
	}

	logPermissionChange(c, perm.Resource, grantorID, "granted "+perm.PermissionType)

	c.JSON(http.StatusCreated, perm)
}

// ListPermissions lists grants: staff see all, other users their own
func ListPermissions(c *gin.Context) {
	query := database.DB.Order("granted_at DESC")
	if !isStaff(c) {
		userID, _ := currentUserID(c)
		query = query.Where("user_id = ?", userID)
	}

	var perms []database.AccessPermission
	if err := query.Find(&perms).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve permissions"})
		return
	}
	c.JSON(http.StatusOK, perms)
}

// GetPermission returns one grant, subject to the visibility rule
func GetPermission(c *gin.Context) {
	id := c.Param("id")
	var perm database.AccessPermission
	if err := database.DB.First(&perm, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Permission not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve permission"})
		}
		return
	}

	if !isStaff(c) {
		userID, _ := currentUserID(c)
		if perm.UserID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
			return
		}
	}

	c.JSON(http.StatusOK, perm)
}

// RevokePermission deactivates a grant without deleting the row
func RevokePermission(c *gin.Context) {
	id := c.Param("id")
	var perm database.AccessPermission
	if err := database.DB.First(&perm, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Permission not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve permission"})
		}
		return
	}

	if err := database.RevokePermission(perm.UserID, perm.Resource, perm.PermissionType); err != nil {
		log.Printf("Permission revoke DB error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke permission"})
		return
	}

	revokerID, _ := currentUserID(c)
	logPermissionChange(c, perm.Resource, revokerID, "revoked "+perm.PermissionType)

	c.JSON(http.StatusOK, gin.H{"message": "Permission revoked"})
}

// CheckPermission runs the deterministic access check. Only staff may check
// another user's access.
func CheckPermission(c *gin.Context) {
	var request AccessCheckRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	userID, _ := currentUserID(c)
	if request.UserID != nil {
		if !isStaff(c) && *request.UserID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
			return
		}
		userID = *request.UserID
	}

	granted, err := database.CheckAccess(userID, request.Resource, request.PermissionType)
	if err != nil {
		log.Printf("Access check DB error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         userID,
		"resource":        request.Resource,
		"permission_type": request.PermissionType,
		"granted":         granted,
	})
}

// VerifyPermission combines the deterministic check with the advisory AI
// verdict. The deterministic result is authoritative; the verdict is returned
// and logged alongside it.
func VerifyPermission(c *gin.Context) {
	var request AccessCheckRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	userID, _ := currentUserID(c)
	email, _ := c.Get("email")
	userName, _ := email.(string)

	granted, err := database.CheckAccess(userID, request.Resource, request.PermissionType)
	if err != nil {
		log.Printf("Access check DB error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), config.GetAITimeout())
	defer cancel()

	verdict := AIService.VerifyAccessRequest(ctx, ai.AccessRequest{
		UserName:   userName,
		UserID:     userID,
		Resource:   request.Resource,
		AccessType: request.PermissionType,
	})

	log.Printf("Access verdict for user %d on %s: granted=%t advisory=%t confidence=%d monitoring=%s",
		userID, request.Resource, granted, verdict.AccessGranted, verdict.Confidence, verdict.MonitoringLevel)

	c.JSON(http.StatusOK, gin.H{
		"granted": granted,
		"verdict": verdict,
	})
}

// logPermissionChange writes a PERMISSION_CHANGE audit row when the permission
// resource refers to a stored file
func logPermissionChange(c *gin.Context, resource string, actorID uint, details string) {
	fileID, ok := strings.CutPrefix(resource, "files/")
	if !ok {
		return
	}
	database.RecordFileAccess(fileID, actorID, database.ActionPermissionChange,
		database.StatusSuccess, c.ClientIP(), c.Request.UserAgent(), details)
}
