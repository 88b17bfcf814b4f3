package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a user in the system
type User struct {
	gorm.Model
	Name         string `json:"name"`
	Email        string `json:"email" gorm:"uniqueIndex"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

// IsStaff reports whether the user role can see other users' records
func (u *User) IsStaff() bool {
	return IsStaffRole(u.Role)
}

// IsStaffRole reports whether a role string counts as privileged
func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleSecurityOfficer
}

// EventType classifies a security event
type EventType string

// Severity is the ordered importance level of a security event
type Severity string

// JSONMap stores an opaque JSON object column
type JSONMap map[string]interface{}

// Value implements driver.Valuer for JSONMap
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONMap
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported type for JSONMap")
	}
}

// SecurityEvent is a recorded security incident, optionally annotated by AI analysis
type SecurityEvent struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	EventType      EventType `json:"event_type" gorm:"size:50;index"`
	Severity       Severity  `json:"severity" gorm:"size:20;index;default:LOW"`
	Description    string    `json:"description" gorm:"type:text"`
	SourceIP       string    `json:"source_ip" gorm:"size:45;index"`
	TargetResource string    `json:"target_resource" gorm:"size:255"`
	Timestamp      time.Time `json:"timestamp" gorm:"index;autoCreateTime"`
	UserID         *uint     `json:"user_id"`
	AdditionalData JSONMap   `json:"additional_data" gorm:"type:text"`
	AIAnalysis     *string   `json:"ai_analysis" gorm:"type:text"`
	IsResolved     bool      `json:"is_resolved" gorm:"default:false"`
	User           *User     `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
}

// BeforeCreate assigns the event identity
func (e *SecurityEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// AccessPermission grants a user a permission type on a resource.
// (user_id, resource, permission_type) is unique; re-granting updates in place.
type AccessPermission struct {
	ID             uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID         uint       `json:"user_id" gorm:"uniqueIndex:idx_user_resource_perm;index:idx_perm_user_resource"`
	Resource       string     `json:"resource" gorm:"size:255;uniqueIndex:idx_user_resource_perm;index:idx_perm_user_resource"`
	PermissionType string     `json:"permission_type" gorm:"size:50;uniqueIndex:idx_user_resource_perm"`
	GrantedByID    *uint      `json:"granted_by_id"`
	GrantedAt      time.Time  `json:"granted_at" gorm:"autoCreateTime"`
	ExpiresAt      *time.Time `json:"expires_at"`
	IsActive       bool       `json:"is_active" gorm:"index;default:true"`
	User           *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	GrantedBy      *User      `gorm:"foreignKey:GrantedByID;constraint:OnDelete:SET NULL" json:"granted_by,omitempty"`
}

// IsEffective reports whether the permission is active and not expired
func (p *AccessPermission) IsEffective(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}

// AIAnalysisRequest stores one query issued to the AI service and its answer
type AIAnalysisRequest struct {
	ID              string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          uint      `json:"user_id" gorm:"index"`
	Query           string    `json:"query" gorm:"type:text"`
	Response        *string   `json:"response" gorm:"type:text"`
	SecurityEventID *string   `json:"security_event_id" gorm:"type:uuid"`
	CreatedAt       time.Time `json:"created_at" gorm:"index;autoCreateTime"`
	ProcessingTime  *float64  `json:"processing_time"`
	TokensUsed      *int      `json:"tokens_used"`
	User            *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`

	SecurityEvent *SecurityEvent `gorm:"foreignKey:SecurityEventID;constraint:OnDelete:SET NULL" json:"security_event,omitempty"`
}

// BeforeCreate assigns the request identity
func (r *AIAnalysisRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Event type values
const (
	EventLoginAttempt    EventType = "LOGIN_ATTEMPT"
	EventAccessViolation EventType = "ACCESS_VIOLATION"
	EventFileAccess      EventType = "FILE_ACCESS"
	EventConfigChange    EventType = "CONFIGURATION_CHANGE"
	EventSystemAlert     EventType = "SYSTEM_ALERT"
	EventSuspicious      EventType = "SUSPICIOUS_ACTIVITY"
)

// Severity values, ordered low to critical
const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// User roles
const (
	RoleAdmin           = "admin"
	RoleSecurityOfficer = "security_officer"
	RoleEmployee        = "employee"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// ValidEventType reports whether t is part of the closed event type set
func ValidEventType(t EventType) bool {
	switch t {
	case EventLoginAttempt, EventAccessViolation, EventFileAccess,
		EventConfigChange, EventSystemAlert, EventSuspicious:
		return true
	}
	return false
}

// ValidSeverity reports whether s is part of the closed severity set
func ValidSeverity(s Severity) bool {
	_, ok := severityRank[s]
	return ok
}

// RequiresEscalation reports whether events of severity s trigger AI analysis at creation
func RequiresEscalation(s Severity) bool {
	return severityRank[s] >= severityRank[SeverityHigh]
}

// ValidRole reports whether the role string is one of the known roles
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleSecurityOfficer || role == RoleEmployee
}
