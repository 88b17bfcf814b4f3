package controllers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banksec/controllers"
	"banksec/database"
)

func TestLoginRecordsSecurityEvents(t *testing.T) {
	r := setupServer(t)
	user, _ := createUser(t, controllers.RoleEmployee)

	t.Run("Failed Login Produces A Medium Event", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
			"email":    user.Email,
			"password": "wrong-password",
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)

		var event database.SecurityEvent
		require.NoError(t, database.DB.
			Where("event_type = ? AND severity = ?", database.EventLoginAttempt, database.SeverityMedium).
			First(&event).Error)
		assert.Equal(t, "auth/login", event.TargetResource)
		require.NotNil(t, event.UserID)
		assert.Equal(t, user.ID, *event.UserID)
		assert.Equal(t, false, event.AdditionalData["success"])
	})

	t.Run("Unknown Email Produces An Event Without A User", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
			"email":    "ghost@banksec.local",
			"password": "whatever-long",
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)

		var events []database.SecurityEvent
		require.NoError(t, database.DB.
			Where("event_type = ? AND user_id IS NULL", database.EventLoginAttempt).
			Find(&events).Error)
		require.Len(t, events, 1)
	})

	t.Run("Successful Login Produces A Low Event And A Token", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
			"email":    user.Email,
			"password": "password123",
		})
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.NotEmpty(t, body["token"])

		var event database.SecurityEvent
		require.NoError(t, database.DB.
			Where("event_type = ? AND severity = ?", database.EventLoginAttempt, database.SeverityLow).
			First(&event).Error)
		assert.Equal(t, true, event.AdditionalData["success"])
	})
}

func TestRegisterAndProfile(t *testing.T) {
	r := setupServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"name":     "New Analyst",
		"email":    "analyst@banksec.local",
		"password": "password123",
		"role":     "employee",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	token := decodeBody(t, w)["token"].(string)

	t.Run("Duplicate Email Conflicts", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
			"name":     "Someone Else",
			"email":    "analyst@banksec.local",
			"password": "password123",
			"role":     "employee",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Unknown Role Is Rejected", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
			"name":     "Bad Role",
			"email":    "badrole@banksec.local",
			"password": "password123",
			"role":     "superuser",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Profile Never Leaks The Password Hash", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/profile", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "analyst@banksec.local", body["email"])
		_, leaked := body["password_hash"]
		assert.False(t, leaked)
	})

	t.Run("Refresh Issues A New Token", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/auth/refresh", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, decodeBody(t, w)["token"])
	})
}

func TestAdminDashboard(t *testing.T) {
	r := setupServer(t)
	_, adminToken := createUser(t, controllers.RoleAdmin)
	_, employeeToken := createUser(t, controllers.RoleEmployee)

	w := doJSON(t, r, http.MethodPost, "/api/events", adminToken, map[string]interface{}{
		"event_type":      "SYSTEM_ALERT",
		"severity":        "CRITICAL",
		"description":     "intrusion alarms",
		"target_resource": "hosts/fw-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("Employee Is Denied", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/admin/dashboard", employeeToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Admin Sees Counters", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/admin/dashboard", adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		stats := decodeBody(t, w)["stats"].(map[string]interface{})
		assert.EqualValues(t, 1, stats["totalEvents"])
		assert.EqualValues(t, 1, stats["openCriticalEvents"])
		assert.EqualValues(t, 2, stats["totalUsers"])
	})

	t.Run("Expiry Maintenance Reports Deactivations", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/admin/permissions/expire", adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 0, decodeBody(t, w)["deactivated"])
	})
}
