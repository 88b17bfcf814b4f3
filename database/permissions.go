package database

import (
	"time"

	"gorm.io/gorm/clause"
)

// CheckAccess reports whether the user holds an effective permission of the
// given type on the resource. No matching row means false (default deny).
// Expired rows count as false but are not deactivated here; reads stay
// side-effect-free.
func CheckAccess(userID uint, resource, permissionType string) (bool, error) {
	var count int64
	err := DB.Model(&AccessPermission{}).
		Where("user_id = ? AND resource = ? AND permission_type = ?", userID, resource, permissionType).
		Where("is_active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GrantPermission inserts or refreshes a permission row. The upsert runs as a
// single statement on the (user_id, resource, permission_type) unique key, so
// concurrent grants for the same key cannot produce duplicates. An existing
// row is reactivated with the new grantor and expiry.
func GrantPermission(grantorID, userID uint, resource, permissionType string, expiresAt *time.Time) (*AccessPermission, error) {
	perm := AccessPermission{
		UserID:         userID,
		Resource:       resource,
		PermissionType: permissionType,
		GrantedByID:    &grantorID,
		GrantedAt:      time.Now(),
		ExpiresAt:      expiresAt,
		IsActive:       true,
	}

	err := DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "resource"},
			{Name: "permission_type"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"granted_by_id", "granted_at", "expires_at", "is_active",
		}),
	}).Create(&perm).Error
	if err != nil {
		return nil, err
	}

	// Re-read so the caller sees the stored row (the conflict path does not
	// backfill the struct's primary key).
	var stored AccessPermission
	err = DB.Where("user_id = ? AND resource = ? AND permission_type = ?",
		userID, resource, permissionType).First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// RevokePermission deactivates a permission row without deleting it, so the
// grant history stays in the table.
func RevokePermission(userID uint, resource, permissionType string) error {
	return DB.Model(&AccessPermission{}).
		Where("user_id = ? AND resource = ? AND permission_type = ?", userID, resource, permissionType).
		Update("is_active", false).Error
}

// DeactivateExpiredPermissions is the maintenance pass that flips expired but
// still-active rows to inactive. The read path never does this.
func DeactivateExpiredPermissions() (int64, error) {
	res := DB.Model(&AccessPermission{}).
		Where("is_active = ?", true).
		Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now()).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
