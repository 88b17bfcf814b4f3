package controllers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"banksec/database"
)

// AdminDashboard returns key statistics for the admin dashboard
func AdminDashboard(c *gin.Context) {
	var totalEvents int64
	var openCritical int64
	var totalFiles int64
	var activePermissions int64
	var totalUsers int64

	if err := database.DB.Model(&database.SecurityEvent{}).Count(&totalEvents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count events"})
		return
	}

	if err := database.DB.Model(&database.SecurityEvent{}).
		Where("severity = ? AND is_resolved = ?", database.SeverityCritical, false).
		Count(&openCritical).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count critical events"})
		return
	}

	if err := database.DB.Model(&database.BankFile{}).Count(&totalFiles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count files"})
		return
	}

	if err := database.DB.Model(&database.AccessPermission{}).
		Where("is_active = ?", true).
		Count(&activePermissions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count permissions"})
		return
	}

	if err := database.DB.Model(&database.User{}).Count(&totalUsers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"totalEvents":        totalEvents,
			"openCriticalEvents": openCritical,
			"totalFiles":         totalFiles,
			"activePermissions":  activePermissions,
			"totalUsers":         totalUsers,
		},
	})
}

// ExpirePermissions runs the maintenance pass that deactivates expired grants.
// The read path never does this, so it has to be triggered here.
func ExpirePermissions(c *gin.Context) {
	affected, err := database.DeactivateExpiredPermissions()
	if err != nil {
		log.Printf("Permission expiry maintenance error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to expire permissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deactivated": affected})
}
