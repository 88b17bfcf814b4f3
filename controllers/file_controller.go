package controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"banksec/ai"
	"banksec/config"
	"banksec/database"
)

// FileUploadRequest carries the multipart metadata of an upload. Size and
// checksum are never read from the client.
type FileUploadRequest struct {
	Name        string               `form:"name" binding:"required"`
	FileType    database.FileType    `form:"file_type" binding:"required"`
	Sensitivity database.Sensitivity `form:"sensitivity"`
	Description string               `form:"description"`
}

// FileUpdateRequest carries the mutable metadata of a stored file
type FileUpdateRequest struct {
	Name        string               `json:"name"`
	FileType    database.FileType    `json:"file_type"`
	Sensitivity database.Sensitivity `json:"sensitivity"`
	Description string               `json:"description"`
}

// FileSearchRequest is a free-text resource search query
type FileSearchRequest struct {
	Query string `json:"query" binding:"required"`
}

// UploadFile stores an uploaded file. Checksum and size come from the stored
// bytes; the storage path is namespaced by the owner identity.
func UploadFile(c *gin.Context) {
	var request FileUploadRequest
	if err := c.ShouldBind(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	if !database.ValidFileType(request.FileType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown file type"})
		return
	}
	if request.Sensitivity == "" {
		request.Sensitivity = database.SensitivityInternal
	}
	if !database.ValidSensitivity(request.Sensitivity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown sensitivity level"})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File content is required"})
		return
	}

	src, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file content"})
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file content"})
		return
	}

	ownerID, _ := currentUserID(c)
	sum := sha256.Sum256(content)

	storageName := uuid.NewString() + filepath.Ext(header.Filename)
	relPath := filepath.Join("uploads", uintToString(ownerID), storageName)
	absPath := filepath.Join(config.AppConfig.UploadDir, uintToString(ownerID), storageName)

	if err := os.MkdirAll(filepath.Dir(absPath), os.ModePerm); err != nil {
		log.Printf("Failed to create upload directory: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}
	if err := os.WriteFile(absPath, content, 0o600); err != nil {
		log.Printf("Failed to write uploaded file: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	file := database.BankFile{
		Name:        request.Name,
		FileType:    request.FileType,
		Sensitivity: request.Sensitivity,
		Description: request.Description,
		OwnerID:     ownerID,
		Path:        relPath,
		Size:        int64(len(content)),
		ContentType: contentType,
		Checksum:    hex.EncodeToString(sum[:]),
	}

	if err := database.DB.Create(&file).Error; err != nil {
		log.Printf("File creation DB error: %v", err)
		os.Remove(absPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	database.RecordFileAccess(file.ID, ownerID, database.ActionUpload,
		database.StatusSuccess, c.ClientIP(), c.Request.UserAgent(), "")

	c.JSON(http.StatusCreated, file)
}

// ListFiles lists file metadata: staff see all, other users their own
func ListFiles(c *gin.Context) {
	query := database.DB.Order("uploaded_at DESC")
	if !isStaff(c) {
		userID, _ := currentUserID(c)
		query = query.Where("owner_id = ?", userID)
	}

	var files []database.BankFile
	if err := query.Find(&files).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve files"})
		return
	}
	c.JSON(http.StatusOK, files)
}

// GetFile returns file metadata, writing a VIEW audit row on every outcome
func GetFile(c *gin.Context) {
	file, ok := loadFile(c)
	if !ok {
		return
	}

	if !authorizeFileAccess(c, file, database.ActionView, PermissionRead) {
		return
	}

	recordOutcome(c, file, database.ActionView, database.StatusSuccess, "")
	c.JSON(http.StatusOK, file)
}

// DownloadFile serves the stored content, writing a DOWNLOAD audit row on
// every outcome. An unreadable stored file produces an ERROR row.
func DownloadFile(c *gin.Context) {
	file, ok := loadFile(c)
	if !ok {
		return
	}

	if !authorizeFileAccess(c, file, database.ActionDownload, PermissionRead) {
		return
	}

	absPath := filepath.Join(config.AppConfig.UploadDir, relToUploadDir(file.Path))
	if _, err := os.Stat(absPath); err != nil {
		recordOutcome(c, file, database.ActionDownload, database.StatusError, "stored content unavailable")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stored file is unavailable"})
		return
	}

	recordOutcome(c, file, database.ActionDownload, database.StatusSuccess, "")
	c.FileAttachment(absPath, file.Name)
}

// UpdateFile updates file metadata, writing an UPDATE audit row on every
// outcome
func UpdateFile(c *gin.Context) {
	file, ok := loadFile(c)
	if !ok {
		return
	}

	var request FileUpdateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	if request.FileType != "" && !database.ValidFileType(request.FileType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown file type"})
		return
	}
	if request.Sensitivity != "" && !database.ValidSensitivity(request.Sensitivity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown sensitivity level"})
		return
	}

	if !authorizeFileAccess(c, file, database.ActionUpdate, PermissionWrite) {
		return
	}

	if request.FileType != "" {
		file.FileType = request.FileType
	}
	if request.Sensitivity != "" {
		file.Sensitivity = request.Sensitivity
	}
	if request.Name != "" {
		file.Name = request.Name
	}
	if request.Description != "" {
		file.Description = request.Description
	}

	if err := database.DB.Save(file).Error; err != nil {
		log.Printf("File update DB error: %v", err)
		recordOutcome(c, file, database.ActionUpdate, database.StatusError, "update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update file"})
		return
	}

	recordOutcome(c, file, database.ActionUpdate, database.StatusSuccess, "")
	c.JSON(http.StatusOK, file)
}

// DeleteFile removes a file (owner or staff only). Denied and failed attempts
// get a DELETE audit row; a completed delete removes the file's audit trail
// with it, per the cascade on the file reference, so no success row can
// outlive it.
func DeleteFile(c *gin.Context) {
	file, ok := loadFile(c)
	if !ok {
		return
	}

	userID, _ := currentUserID(c)
	if file.OwnerID != userID && !isStaff(c) {
		database.RecordFileAccess(file.ID, userID, database.ActionDelete,
			database.StatusDenied, c.ClientIP(), c.Request.UserAgent(), "not owner")
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return
	}

	if err := database.DB.Delete(file).Error; err != nil {
		log.Printf("File delete DB error: %v", err)
		recordOutcome(c, file, database.ActionDelete, database.StatusError, "delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file"})
		return
	}

	absPath := filepath.Join(config.AppConfig.UploadDir, relToUploadDir(file.Path))
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to remove stored file %s: %v", absPath, err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

// SearchFiles runs an AI-assisted resource search scoped to what the caller
// may effectively access; the service never sees resources outside that scope.
func SearchFiles(c *gin.Context) {
	var request FileSearchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	userID, _ := currentUserID(c)
	resources, err := accessibleResources(userID)
	if err != nil {
		log.Printf("Accessible resources query error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search files"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), config.GetAITimeout())
	defer cancel()

	start := time.Now()
	result := AIService.SearchResource(ctx, request.Query, ai.UserContext{
		UserID:    userID,
		Role:      currentRole(c),
		Resources: resources,
	})
	elapsed := time.Since(start).Seconds()

	aiRequest := database.AIAnalysisRequest{
		UserID: userID,
		Query:  request.Query,
	}
	if !result.Degraded {
		if encoded, err := json.Marshal(result); err == nil {
			response := string(encoded)
			aiRequest.Response = &response
		}
		aiRequest.ProcessingTime = &elapsed
	}
	if err := database.DB.Create(&aiRequest).Error; err != nil {
		log.Printf("Failed to record AI search request: %v", err)
	}

	c.JSON(http.StatusOK, result)
}

// FilesStatus is the public liveness stub for the file service
func FilesStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "File service available"})
}

// authorizeFileAccess applies the file access rule (owner, staff, or an
// effective permission on files/<id>). It writes the audit row for denied and
// errored checks and responds with 403 itself when access is denied. Logging
// the success row is left to the handler once the operation's outcome is
// known, so every attempt produces exactly one row.
func authorizeFileAccess(c *gin.Context, file *database.BankFile, action database.FileAction, permissionType string) bool {
	userID, _ := currentUserID(c)

	allowed := file.OwnerID == userID || isStaff(c)
	if !allowed {
		granted, err := database.CheckAccess(userID, fileResource(file.ID), permissionType)
		if err != nil {
			log.Printf("Access check DB error: %v", err)
			database.RecordFileAccess(file.ID, userID, action,
				database.StatusError, c.ClientIP(), c.Request.UserAgent(), "access check failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
			return false
		}
		allowed = granted
	}

	if !allowed {
		database.RecordFileAccess(file.ID, userID, action,
			database.StatusDenied, c.ClientIP(), c.Request.UserAgent(), "no effective permission")
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return false
	}

	return true
}

// recordOutcome writes the single audit row for an authorized attempt once
// its outcome is known
func recordOutcome(c *gin.Context, file *database.BankFile, action database.FileAction, status database.AccessStatus, details string) {
	userID, _ := currentUserID(c)
	database.RecordFileAccess(file.ID, userID, action, status,
		c.ClientIP(), c.Request.UserAgent(), details)
}

// accessibleResources collects the resource identifiers the user may search
// over: owned files plus effective permission grants.
func accessibleResources(userID uint) ([]string, error) {
	var owned []string
	err := database.DB.Model(&database.BankFile{}).
		Where("owner_id = ?", userID).
		Pluck("path", &owned).Error
	if err != nil {
		return nil, err
	}

	var granted []string
	err = database.DB.Model(&database.AccessPermission{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Distinct().
		Pluck("resource", &granted).Error
	if err != nil {
		return nil, err
	}

	return append(owned, granted...), nil
}

func loadFile(c *gin.Context) (*database.BankFile, bool) {
	id := c.Param("id")
	var file database.BankFile
	if err := database.DB.First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve file"})
		}
		return nil, false
	}
	return &file, true
}

func fileResource(fileID string) string {
	return "files/" + fileID
}

func relToUploadDir(storedPath string) string {
	rel, err := filepath.Rel("uploads", storedPath)
	if err != nil {
		return storedPath
	}
	return rel
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
