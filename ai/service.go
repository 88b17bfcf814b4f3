package ai

import (
	"context"
	"fmt"
	"strings"

	"banksec/config"
	"banksec/database"
)

// MonitoringLevel is the follow-up scrutiny attached to an access verdict
type MonitoringLevel string

// Monitoring levels, derived from verdict confidence
const (
	MonitoringNormal   MonitoringLevel = "NORMAL"
	MonitoringElevated MonitoringLevel = "ELEVATED"
	MonitoringStrict   MonitoringLevel = "STRICT"
)

// Confidence thresholds for monitoring levels. Below the strict threshold an
// advisory grant is reported as false regardless of the engine's boolean.
const (
	confidenceNormal = 75
	confidenceStrict = 40
)

// Analysis is the result of analyzing one security event
type Analysis struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
	Degraded   bool   `json:"degraded"`
}

// UserContext is the caller's access scope passed into a search. Resources
// must already be filtered down to what the user effectively holds; the
// service never widens it.
type UserContext struct {
	UserID    uint     `json:"user_id"`
	Role      string   `json:"role"`
	Resources []string `json:"resources"`
}

// SearchResult is the structured answer to a resource search query
type SearchResult struct {
	FileName  string   `json:"file_name"`
	FileType  string   `json:"file_type"`
	Locations []string `json:"locations"`
	Keywords  []string `json:"keywords"`
	Query     string   `json:"query"`
	Degraded  bool     `json:"degraded"`
}

// AccessRequest describes one access decision put to the service
type AccessRequest struct {
	UserName   string                 `json:"user_name"`
	UserID     uint                   `json:"user_id"`
	Resource   string                 `json:"resource"`
	AccessType string                 `json:"access_type"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// AccessVerdict is the advisory answer to an access request. It augments the
// deterministic permission check and never replaces it.
type AccessVerdict struct {
	AccessGranted   bool            `json:"access_granted"`
	Confidence      int             `json:"confidence"`
	Reasoning       string          `json:"reasoning"`
	Restrictions    []string        `json:"restrictions"`
	MonitoringLevel MonitoringLevel `json:"monitoring_level"`
	Degraded        bool            `json:"degraded"`
}

// Service is the capability interface for the analysis backend. A stub and a
// real inference backend are interchangeable behind it. Implementations must
// not fail: on an internal fault they return a degraded result instead of an
// error, since analysis is always secondary to the primary write.
type Service interface {
	AnalyzeSecurityEvent(ctx context.Context, event *database.SecurityEvent) Analysis
	SearchResource(ctx context.Context, query string, userCtx UserContext) SearchResult
	VerifyAccessRequest(ctx context.Context, req AccessRequest) AccessVerdict
}

// MonitoringLevelFor maps a confidence score to a monitoring level
func MonitoringLevelFor(confidence int) MonitoringLevel {
	switch {
	case confidence >= confidenceNormal:
		return MonitoringNormal
	case confidence >= confidenceStrict:
		return MonitoringElevated
	default:
		return MonitoringStrict
	}
}

// OpenAIService answers analysis queries with canned assessments. It stands in
// for a real OpenAI-backed implementation of Service.
type OpenAIService struct {
	apiKey string
}

// NewOpenAIService builds the service from the application configuration
func NewOpenAIService() *OpenAIService {
	return &OpenAIService{apiKey: config.AppConfig.OpenAIKey}
}

// AnalyzeSecurityEvent returns a textual assessment of the event. Identical
// inputs are not guaranteed identical outputs once a real backend sits here;
// callers may only rely on the stored field being overwritten.
func (s *OpenAIService) AnalyzeSecurityEvent(ctx context.Context, event *database.SecurityEvent) Analysis {
	if ctx.Err() != nil {
		return degradedAnalysis()
	}
	if event == nil {
		return degradedAnalysis()
	}

	escalate := "No"
	threat := "Medium"
	if database.RequiresEscalation(event.Severity) {
		escalate = "Yes"
		threat = "High"
	}

	text := fmt.Sprintf(
		"Security event analysis (type: %s, severity: %s).\n\n"+
			"Findings:\n"+
			"1. Threat level: %s\n"+
			"2. False positive likelihood: Low\n"+
			"3. Recommended actions: review the user's access rights and inspect recent activity logs for %s.\n"+
			"4. Escalation required: %s",
		event.EventType, event.Severity, threat, event.TargetResource, escalate,
	)

	return Analysis{
		Text:       text,
		TokensUsed: estimateTokens(text + event.Description),
	}
}

// SearchResource returns candidate matches for a free-text query, restricted
// to the resources in the caller's context.
func (s *OpenAIService) SearchResource(ctx context.Context, query string, userCtx UserContext) SearchResult {
	if ctx.Err() != nil {
		return SearchResult{Query: query, Degraded: true}
	}

	keywords := strings.Fields(query)
	locations := userCtx.Resources
	if locations == nil {
		locations = []string{}
	}

	return SearchResult{
		FileName:  "example_" + strings.ReplaceAll(query, " ", "_") + ".pdf",
		FileType:  string(database.FileDocument),
		Locations: locations,
		Keywords:  keywords,
		Query:     "document:" + query,
	}
}

// VerifyAccessRequest returns an advisory verdict on an access request. The
// caller combines it with the deterministic permission check, which stays
// authoritative.
func (s *OpenAIService) VerifyAccessRequest(ctx context.Context, req AccessRequest) AccessVerdict {
	if ctx.Err() != nil {
		return degradedVerdict()
	}

	confidence := 85
	granted := true
	if confidence < confidenceStrict {
		granted = false
	}

	return AccessVerdict{
		AccessGranted: granted,
		Confidence:    confidence,
		Reasoning: fmt.Sprintf("User %s holds the rights required to access %s.",
			req.UserName, req.Resource),
		Restrictions:    []string{"Read only", "Temporary access (1 day)"},
		MonitoringLevel: MonitoringLevelFor(confidence),
	}
}

func degradedAnalysis() Analysis {
	return Analysis{Degraded: true}
}

func degradedVerdict() AccessVerdict {
	return AccessVerdict{
		AccessGranted:   false,
		Confidence:      0,
		Reasoning:       "analysis unavailable",
		Restrictions:    []string{},
		MonitoringLevel: MonitoringStrict,
		Degraded:        true,
	}
}

// Rough token count for the stub's usage accounting
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
