package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"banksec/database"
)

// ListAIRequests lists the AI query history. Staff see every request, other
// users only their own.
func ListAIRequests(c *gin.Context) {
	query := database.DB.Order("created_at DESC")
	if !isStaff(c) {
		userID, _ := currentUserID(c)
		query = query.Where("user_id = ?", userID)
	}

	var requests []database.AIAnalysisRequest
	if err := query.Find(&requests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve AI requests"})
		return
	}
	c.JSON(http.StatusOK, requests)
}

// GetAIRequest returns one AI request, subject to the visibility rule
func GetAIRequest(c *gin.Context) {
	id := c.Param("id")
	var request database.AIAnalysisRequest
	if err := database.DB.First(&request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "AI request not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve AI request"})
		}
		return
	}

	if !isStaff(c) {
		userID, _ := currentUserID(c)
		if request.UserID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
			return
		}
	}

	c.JSON(http.StatusOK, request)
}
