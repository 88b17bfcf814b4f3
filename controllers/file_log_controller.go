package controllers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"banksec/database"
)

// ListFileAccessLogs lists audit rows. Staff see every row, other users only
// rows about themselves. The filter is applied at query time, never at write
// time.
func ListFileAccessLogs(c *gin.Context) {
	query := database.DB.Order("timestamp DESC")
	if !isStaff(c) {
		userID, _ := currentUserID(c)
		query = query.Where("user_id = ?", userID)
	}

	var logs []database.FileAccessLog
	if err := query.Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve access logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

type logBucket struct {
	Label string `gorm:"column:label"`
	Count int64  `gorm:"column:count"`
}

// FileAccessLogStats returns counts by action and by status over the rows the
// caller may see
func FileAccessLogStats(c *gin.Context) {
	actions, err := logCounts(c, "action")
	if err != nil {
		log.Printf("Access log action stats error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}

	statuses, err := logCounts(c, "status")
	if err != nil {
		log.Printf("Access log status stats error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}

	actionCounts := make([]gin.H, 0, len(actions))
	for _, b := range actions {
		actionCounts = append(actionCounts, gin.H{"action": b.Label, "count": b.Count})
	}
	statusCounts := make([]gin.H, 0, len(statuses))
	for _, b := range statuses {
		statusCounts = append(statusCounts, gin.H{"status": b.Label, "count": b.Count})
	}

	c.JSON(http.StatusOK, gin.H{
		"actions":  actionCounts,
		"statuses": statusCounts,
	})
}

// logCounts groups the caller-visible audit rows by the given column
func logCounts(c *gin.Context, column string) ([]logBucket, error) {
	scope := database.DB.Model(&database.FileAccessLog{})
	if !isStaff(c) {
		userID, _ := currentUserID(c)
		scope = scope.Where("user_id = ?", userID)
	}

	var buckets []logBucket
	err := scope.
		Select(column + " AS label, COUNT(*) AS count").
		Group(column).
		Scan(&buckets).Error
	if err != nil {
		return nil, err
	}
	return buckets, nil
}
