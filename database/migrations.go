package database

import (
	"log"
)

// RunMigrations runs all database migrations
func RunMigrations() error {
	log.Println("Running database migrations...")

	// AutoMigrate will create tables if they don't exist
	if err := DB.AutoMigrate(
		&User{},
		&SecurityEvent{},
		&AccessPermission{},
		&AIAnalysisRequest{},
		&BankFile{},
		&FileAccessLog{},
	); err != nil {
		log.Printf("Migration failed: %v", err)
		return err
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// SeedDefaultAdmin creates a default admin if none exists
func SeedDefaultAdmin(passwordHash string) {
	var count int64
	if err := DB.Model(&User{}).Where("role = ?", RoleAdmin).Count(&count).Error; err != nil {
		log.Printf("❌ Failed to check existing admin: %v", err)
		return
	}

	if count == 0 {
		admin := User{
			Name:         "Security Admin",
			Email:        "admin@banksec.local",
			PasswordHash: passwordHash,
			Role:         RoleAdmin,
		}

		if err := DB.Create(&admin).Error; err != nil {
			log.Printf("❌ Failed to create admin: %v", err)
		} else {
			log.Println("✅ Default admin user created successfully.")
		}
	} else {
		log.Println("ℹ️ Admin user already exists.")
	}
}
