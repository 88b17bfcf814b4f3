package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileType classifies a stored file
type FileType string

// Sensitivity is the confidentiality level of a stored file
type Sensitivity string

// FileAction is the kind of access recorded in the audit log
type FileAction string

// AccessStatus is the outcome of a recorded access attempt
type AccessStatus string

// BankFile holds metadata about an uploaded file. Size and Checksum are
// computed from the stored bytes at upload time, never taken from the client.
type BankFile struct {
	ID          string      `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string      `json:"name" gorm:"size:255;index"`
	FileType    FileType    `json:"file_type" gorm:"size:20;index"`
	Sensitivity Sensitivity `json:"sensitivity" gorm:"size:20;index;default:INTERNAL"`
	Description string      `json:"description" gorm:"type:text"`
	OwnerID     uint        `json:"owner_id" gorm:"index"`
	UploadedAt  time.Time   `json:"uploaded_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
	Path        string      `json:"path" gorm:"size:500"`
	Size        int64       `json:"size"`
	ContentType string      `json:"content_type" gorm:"size:100"`
	Checksum    string      `json:"checksum" gorm:"size:64"` // SHA-256 of the content
	Owner       *User       `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
}

// BeforeCreate assigns the file identity
func (f *BankFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// FileAccessLog is an append-only audit row for one access attempt.
// Rows are written on every path, denied and errored attempts included.
type FileAccessLog struct {
	ID        string       `json:"id" gorm:"type:uuid;primaryKey"`
	FileID    string       `json:"file_id" gorm:"type:uuid;index"`
	UserID    uint         `json:"user_id" gorm:"index"`
	Action    FileAction   `json:"action" gorm:"size:20;index"`
	Timestamp time.Time    `json:"timestamp" gorm:"index;autoCreateTime"`
	IPAddress string       `json:"ip_address" gorm:"size:45"`
	UserAgent string       `json:"user_agent" gorm:"type:text"`
	Status    AccessStatus `json:"status" gorm:"size:20;index"`
	Details   *string      `json:"details" gorm:"type:text"`
	File      *BankFile    `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE" json:"file,omitempty"`
	User      *User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// BeforeCreate assigns the log row identity
func (l *FileAccessLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// File type values
const (
	FileDocument      FileType = "DOCUMENT"
	FileReport        FileType = "REPORT"
	FileLog           FileType = "LOG"
	FileConfiguration FileType = "CONFIGURATION"
	FileDatabase      FileType = "DATABASE"
	FileBackup        FileType = "BACKUP"
	FileOther         FileType = "OTHER"
)

// Sensitivity values
const (
	SensitivityPublic       Sensitivity = "PUBLIC"
	SensitivityInternal     Sensitivity = "INTERNAL"
	SensitivityConfidential Sensitivity = "CONFIDENTIAL"
	SensitivityRestricted   Sensitivity = "RESTRICTED"
	SensitivitySecret       Sensitivity = "SECRET"
)

// File access actions
const (
	ActionView             FileAction = "VIEW"
	ActionDownload         FileAction = "DOWNLOAD"
	ActionUpload           FileAction = "UPLOAD"
	ActionUpdate           FileAction = "UPDATE"
	ActionDelete           FileAction = "DELETE"
	ActionPermissionChange FileAction = "PERMISSION_CHANGE"
)

// Access outcome values
const (
	StatusSuccess AccessStatus = "SUCCESS"
	StatusDenied  AccessStatus = "DENIED"
	StatusError   AccessStatus = "ERROR"
)

// ValidFileType reports whether t is part of the closed file type set
func ValidFileType(t FileType) bool {
	switch t {
	case FileDocument, FileReport, FileLog, FileConfiguration,
		FileDatabase, FileBackup, FileOther:
		return true
	}
	return false
}

// ValidSensitivity reports whether s is part of the closed sensitivity set
func ValidSensitivity(s Sensitivity) bool {
	switch s {
	case SensitivityPublic, SensitivityInternal, SensitivityConfidential,
		SensitivityRestricted, SensitivitySecret:
		return true
	}
	return false
}
