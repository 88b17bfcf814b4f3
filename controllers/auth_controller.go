package controllers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"banksec/config"
	"banksec/database"
	"banksec/utils"
)

// LoginRequest contains the credentials for user login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// RegisterRequest contains the data for user registration
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
}

// LoginResponse is the structure returned after login
type LoginResponse struct {
	Token  string        `json:"token"`
	User   database.User `json:"user"`
	Expiry int64         `json:"expiry"`
}

// Login handles user authentication and returns a JWT token. Every attempt,
// failed or successful, is recorded in the security event log.
func Login(c *gin.Context) {
	var loginRequest LoginRequest

	if err := c.ShouldBindJSON(&loginRequest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	// Find user by email
	var user database.User
	result := database.DB.Where("email = ?", loginRequest.Email).First(&user)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			recordLoginAttempt(c, nil, loginRequest.Email, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		log.Printf("Database error: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	// Verify password
	if !utils.CheckPasswordHash(loginRequest.Password, user.PasswordHash) {
		recordLoginAttempt(c, &user.ID, loginRequest.Email, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// Generate JWT token
	expirationTime := time.Now().Add(config.GetJWTExpiration())
	token, err := utils.GenerateJWT(user.ID, user.Email, user.Role, expirationTime)
	if err != nil {
		log.Printf("Error generating token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating token"})
		return
	}

	recordLoginAttempt(c, &user.ID, user.Email, true)

	// Remove sensitive information from response
	user.PasswordHash = ""

	c.JSON(http.StatusOK, LoginResponse{
		Token:  token,
		User:   user,
		Expiry: expirationTime.Unix(),
	})
}

// Register handles user registration
func Register(c *gin.Context) {
	var registerRequest RegisterRequest

	if err := c.ShouldBindJSON(&registerRequest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	if !database.ValidRole(registerRequest.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}

	// Check if email already exists
	var count int64
	database.DB.Model(&database.User{}).Where("email = ?", registerRequest.Email).Count(&count)

	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	// Hash password
	passwordHash, err := utils.HashPassword(registerRequest.Password)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing registration"})
		return
	}

	// Create new user
	user := database.User{
		Name:         registerRequest.Name,
		Email:        registerRequest.Email,
		PasswordHash: passwordHash,
		Role:         registerRequest.Role,
	}

	result := database.DB.Create(&user)

	if result.Error != nil {
		log.Printf("Database error: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating user"})
		return
	}

	// Generate JWT token
	expirationTime := time.Now().Add(config.GetJWTExpiration())
	token, err := utils.GenerateJWT(user.ID, user.Email, user.Role, expirationTime)
	if err != nil {
		log.Printf("Error generating token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating token"})
		return
	}

	user.PasswordHash = ""

	c.JSON(http.StatusCreated, LoginResponse{
		Token:  token,
		User:   user,
		Expiry: expirationTime.Unix(),
	})
}

// RefreshToken refreshes the JWT token
func RefreshToken(c *gin.Context) {
	userID, exists := currentUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	email, exists := c.Get("email")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	role := currentRole(c)
	if role == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	// Generate new JWT token
	expirationTime := time.Now().Add(config.GetJWTExpiration())
	token, err := utils.GenerateJWT(userID, email.(string), role, expirationTime)
	if err != nil {
		log.Printf("Error generating token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":  token,
		"expiry": expirationTime.Unix(),
	})
}

// GetUserProfile returns the authenticated user's profile
func GetUserProfile(c *gin.Context) {
	userID, exists := currentUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var user database.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user.PasswordHash = ""
	c.JSON(http.StatusOK, user)
}

// recordLoginAttempt feeds an authentication outcome into the security event
// log. Failures are MEDIUM, successes LOW, so no attempt escalates on its own.
func recordLoginAttempt(c *gin.Context, userID *uint, email string, success bool) {
	severity := database.SeverityMedium
	description := "Failed login for " + email
	if success {
		severity = database.SeverityLow
		description = "Successful login for " + email
	}

	event := database.SecurityEvent{
		EventType:      database.EventLoginAttempt,
		Severity:       severity,
		Description:    description,
		TargetResource: "auth/login",
		SourceIP:       c.ClientIP(),
		UserID:         userID,
		AdditionalData: database.JSONMap{"success": success},
	}

	if err := database.DB.Create(&event).Error; err != nil {
		log.Printf("Failed to record login attempt event: %v", err)
	}
}
