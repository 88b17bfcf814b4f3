package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"banksec/config"
	"banksec/database"
)

// SecurityEventRequest contains the client-supplied fields of a new event.
// source_ip, user and timestamp are always server-assigned.
type SecurityEventRequest struct {
	EventType      database.EventType `json:"event_type" binding:"required"`
	Severity       database.Severity  `json:"severity" binding:"required"`
	Description    string             `json:"description" binding:"required"`
	TargetResource string             `json:"target_resource" binding:"required"`
	AdditionalData database.JSONMap   `json:"additional_data"`
}

// CreateSecurityEvent records a new security event. HIGH and CRITICAL events
// are analyzed synchronously before the response goes out, so the caller
// always sees the analysis of the event it just created.
func CreateSecurityEvent(c *gin.Context) {
	var request SecurityEventRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	if !database.ValidEventType(request.EventType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown event type"})
		return
	}
	if !database.ValidSeverity(request.Severity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown severity level"})
		return
	}

	userID, _ := currentUserID(c)
	event := database.SecurityEvent{
		EventType:      request.EventType,
		Severity:       request.Severity,
		Description:    request.Description,
		TargetResource: request.TargetResource,
		AdditionalData: request.AdditionalData,
		SourceIP:       c.ClientIP(),
		UserID:         &userID,
	}

	if err := database.DB.Create(&event).Error; err != nil {
		log.Printf("Security event creation DB error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
		return
	}

	if database.RequiresEscalation(event.Severity) {
		analyzeEvent(c.Request.Context(), &event, userID)
	}

	c.JSON(http.StatusCreated, event)
}

// AnalyzeSecurityEvent re-runs AI analysis for one event and overwrites the
// stored result
func AnalyzeSecurityEvent(c *gin.Context) {
	event, ok := loadEvent(c)
	if !ok {
		return
	}

	userID, _ := currentUserID(c)
	analyzeEvent(c.Request.Context(), event, userID)

	if event.AIAnalysis == nil {
		c.JSON(http.StatusOK, gin.H{
			"event_id":        event.ID,
			"analysis_result": nil,
			"degraded":        true,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id":        event.ID,
		"analysis_result": *event.AIAnalysis,
	})
}

// ResolveSecurityEvent marks an event as resolved (staff only via routing)
func ResolveSecurityEvent(c *gin.Context) {
	event, ok := loadEvent(c)
	if !ok {
		return
	}

	if err := database.DB.Model(event).Update("is_resolved", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve event"})
		return
	}
	event.IsResolved = true
	c.JSON(http.StatusOK, event)
}

// GetSecurityEvent returns one event. Staff see every event, other users only
// their own.
func GetSecurityEvent(c *gin.Context) {
	event, ok := loadEvent(c)
	if !ok {
		return
	}

	if !isStaff(c) {
		userID, _ := currentUserID(c)
		if event.UserID == nil || *event.UserID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
			return
		}
	}

	c.JSON(http.StatusOK, event)
}

// ListSecurityEvents lists events, scoped by the visibility rule
func ListSecurityEvents(c *gin.Context) {
	query := database.DB.Order("timestamp DESC")
	if !isStaff(c) {
		userID, _ := currentUserID(c)
		query = query.Where("user_id = ?", userID)
	}

	var events []database.SecurityEvent
	if err := query.Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}
	c.JSON(http.StatusOK, events)
}

type countRow struct {
	Key   string `json:"-"`
	Count int64  `json:"count"`
}

// SecurityEventStats returns event counts grouped by type, severity and
// calendar day over the trailing week. The GROUP BY queries run as raw SQL on
// the legacy connection.
func SecurityEventStats(c *gin.Context) {
	eventTypes, err := groupCount("SELECT event_type, COUNT(*) FROM security_events GROUP BY event_type")
	if err != nil {
		log.Printf("Event type stats query error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}

	severities, err := groupCount("SELECT severity, COUNT(*) FROM security_events GROUP BY severity")
	if err != nil {
		log.Printf("Severity stats query error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	rows, err := database.LegacyDB.Query(
		"SELECT DATE(timestamp) AS day, COUNT(*) FROM security_events WHERE timestamp >= $1 GROUP BY DATE(timestamp) ORDER BY day",
		weekAgo,
	)
	if err != nil {
		log.Printf("Events by day stats query error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}
	defer rows.Close()

	eventsByDay := []gin.H{}
	for rows.Next() {
		var day string
		var count int64
		if err := rows.Scan(&day, &count); err != nil {
			log.Printf("Events by day scan error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
			return
		}
		eventsByDay = append(eventsByDay, gin.H{"day": day, "count": count})
	}
	if err := rows.Err(); err != nil {
		log.Printf("Events by day rows error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_types":     keyedCounts(eventTypes, "event_type"),
		"severity_levels": keyedCounts(severities, "severity"),
		"events_by_day":   eventsByDay,
	})
}

// analyzeEvent invokes the AI service under the configured timeout, stores the
// result on the event and records the request in the AI history. An AI fault
// leaves the event unanalyzed; it never fails the surrounding request.
func analyzeEvent(parent context.Context, event *database.SecurityEvent, requesterID uint) {
	ctx, cancel := context.WithTimeout(parent, config.GetAITimeout())
	defer cancel()

	start := time.Now()
	result := AIService.AnalyzeSecurityEvent(ctx, event)
	elapsed := time.Since(start).Seconds()

	request := database.AIAnalysisRequest{
		UserID:          requesterID,
		Query:           "analyze security event " + event.ID,
		SecurityEventID: &event.ID,
	}

	if !result.Degraded {
		request.Response = &result.Text
		request.ProcessingTime = &elapsed
		request.TokensUsed = &result.TokensUsed

		if err := database.DB.Model(event).Update("ai_analysis", result.Text).Error; err != nil {
			log.Printf("Failed to store analysis for event %s: %v", event.ID, err)
		} else {
			event.AIAnalysis = &result.Text
		}
	} else {
		log.Printf("AI analysis degraded for event %s", event.ID)
	}

	if requesterID != 0 {
		if err := database.DB.Create(&request).Error; err != nil {
			log.Printf("Failed to record AI request for event %s: %v", event.ID, err)
		}
	}
}

func loadEvent(c *gin.Context) (*database.SecurityEvent, bool) {
	id := c.Param("id")
	var event database.SecurityEvent
	if err := database.DB.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve event"})
		}
		return nil, false
	}
	return &event, true
}

func groupCount(query string) ([]countRow, error) {
	rows, err := database.LegacyDB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []countRow
	for rows.Next() {
		var r countRow
		if err := rows.Scan(&r.Key, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func keyedCounts(rows []countRow, key string) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		out = append(out, gin.H{key: r.Key, "count": r.Count})
	}
	return out
}
