package controllers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"banksec/ai"
	"banksec/config"
	"banksec/controllers"
	"banksec/database"
	"banksec/routes"
	"banksec/utils"
)

var testDBCounter int64

// stubAIService is a deterministic Service implementation for tests
type stubAIService struct {
	degraded bool
	verdict  ai.AccessVerdict
}

func (s *stubAIService) AnalyzeSecurityEvent(ctx context.Context, event *database.SecurityEvent) ai.Analysis {
	if s.degraded {
		return ai.Analysis{Degraded: true}
	}
	return ai.Analysis{
		Text:       fmt.Sprintf("stub analysis for %s/%s", event.EventType, event.Severity),
		TokensUsed: 5,
	}
}

func (s *stubAIService) SearchResource(ctx context.Context, query string, userCtx ai.UserContext) ai.SearchResult {
	if s.degraded {
		return ai.SearchResult{Query: query, Degraded: true}
	}
	return ai.SearchResult{
		FileName:  "stub.pdf",
		FileType:  string(database.FileDocument),
		Locations: userCtx.Resources,
		Query:     query,
	}
}

func (s *stubAIService) VerifyAccessRequest(ctx context.Context, req ai.AccessRequest) ai.AccessVerdict {
	if s.degraded {
		return ai.AccessVerdict{Confidence: 0, MonitoringLevel: ai.MonitoringStrict, Degraded: true}
	}
	return s.verdict
}

// setupServer wires a router against a fresh shared in-memory database. The
// raw connection points at the same database so the statistics SQL sees the
// ORM's writes.
func setupServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.InitConfig()
	config.AppConfig.UploadDir = t.TempDir()

	dsn := fmt.Sprintf("file:controllers_test_%d?mode=memory&cache=shared",
		atomic.AddInt64(&testDBCounter, 1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&database.User{},
		&database.SecurityEvent{},
		&database.AccessPermission{},
		&database.AIAnalysisRequest{},
		&database.BankFile{},
		&database.FileAccessLog{},
	))
	database.DB = db

	legacy, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	database.LegacyDB = legacy
	t.Cleanup(func() {
		legacy.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	controllers.AIService = &stubAIService{
		verdict: ai.AccessVerdict{
			AccessGranted:   true,
			Confidence:      85,
			Reasoning:       "stub verdict",
			MonitoringLevel: ai.MonitoringNormal,
		},
	}

	r := gin.New()
	routes.SetupRoutes(r)
	return r
}

// createUser inserts a user and returns it with a valid bearer token
func createUser(t *testing.T, role string) (database.User, string) {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)

	user := database.User{
		Name:         "Test " + role,
		Email:        fmt.Sprintf("%s_%d@banksec.local", role, time.Now().UnixNano()),
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, database.DB.Create(&user).Error)

	token, err := utils.GenerateJWT(user.ID, user.Email, user.Role, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return user, token
}

// doJSON performs a JSON request against the test router
func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// doUpload performs a multipart file upload against the test router
func doUpload(t *testing.T, r *gin.Engine, token, name, fileType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("name", name))
	require.NoError(t, writer.WriteField("file_type", fileType))
	part, err := writer.CreateFormFile("file", name+".bin")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// jsonNumber renders a decoded JSON number as a path segment
func jsonNumber(v interface{}) string {
	return strconv.FormatInt(int64(v.(float64)), 10)
}

// decodeInto unmarshals a JSON response body into the given value
func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v interface{}) error {
	t.Helper()
	return json.Unmarshal(w.Body.Bytes(), v)
}

// decodeBody unmarshals a JSON response body into a map
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
