package database

import (
	"log"
)

// RecordFileAccess appends one audit row for a file access attempt. It is
// called on every path, denied and errored attempts included. Failure to
// write the row is logged but never turned into a request failure.
func RecordFileAccess(fileID string, userID uint, action FileAction, status AccessStatus, ip, userAgent, details string) {
	entry := FileAccessLog{
		FileID:    fileID,
		UserID:    userID,
		Action:    action,
		Status:    status,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if details != "" {
		entry.Details = &details
	}

	if err := DB.Create(&entry).Error; err != nil {
		log.Printf("Failed to write file access log (file=%s action=%s): %v", fileID, action, err)
	}
}
