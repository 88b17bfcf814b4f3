package controllers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banksec/ai"
	"banksec/controllers"
	"banksec/database"
)

func TestGrantPermissionEndpoint(t *testing.T) {
	r := setupServer(t)
	admin, adminToken := createUser(t, controllers.RoleAdmin)
	alice, _ := createUser(t, controllers.RoleEmployee)

	t.Run("Granting Twice Yields One Row", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/permissions", adminToken, map[string]interface{}{
			"user_id":         alice.ID,
			"resource":        "reports/Q1",
			"permission_type": "READ",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		later := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
		w = doJSON(t, r, http.MethodPost, "/api/permissions", adminToken, map[string]interface{}{
			"user_id":         alice.ID,
			"resource":        "reports/Q1",
			"permission_type": "READ",
			"expires_at":      later,
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var rows []database.AccessPermission
		require.NoError(t, database.DB.
			Where("user_id = ? AND resource = ? AND permission_type = ?", alice.ID, "reports/Q1", "READ").
			Find(&rows).Error)
		require.Len(t, rows, 1, "re-granting must update, not duplicate")
		require.NotNil(t, rows[0].ExpiresAt, "the second grant's expiry must win")
		require.NotNil(t, rows[0].GrantedByID)
		assert.Equal(t, admin.ID, *rows[0].GrantedByID)
		assert.True(t, rows[0].IsActive)
	})

	t.Run("Grant For Unknown User Is NotFound", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/permissions", adminToken, map[string]interface{}{
			"user_id":         uint(99999),
			"resource":        "reports/Q1",
			"permission_type": "READ",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCheckPermissionEndpoint(t *testing.T) {
	r := setupServer(t)
	_, adminToken := createUser(t, controllers.RoleAdmin)
	alice, aliceToken := createUser(t, controllers.RoleEmployee)

	t.Run("No Grant Means Default Deny", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/permissions/check", aliceToken, map[string]interface{}{
			"resource":        "reports/Q1",
			"permission_type": "READ",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decodeBody(t, w)["granted"])
	})

	t.Run("Expired Grant Is Denied But Not Deactivated", func(t *testing.T) {
		yesterday := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
		w := doJSON(t, r, http.MethodPost, "/api/permissions", adminToken, map[string]interface{}{
			"user_id":         alice.ID,
			"resource":        "reports/Q1",
			"permission_type": "READ",
			"expires_at":      yesterday,
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(t, r, http.MethodPost, "/api/permissions/check", aliceToken, map[string]interface{}{
			"resource":        "reports/Q1",
			"permission_type": "READ",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decodeBody(t, w)["granted"])

		// The read path never writes back
		var stored database.AccessPermission
		require.NoError(t, database.DB.
			Where("user_id = ? AND resource = ?", alice.ID, "reports/Q1").
			First(&stored).Error)
		assert.True(t, stored.IsActive, "check_access must not deactivate expired rows")
	})

	t.Run("Active Grant Is Allowed", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/permissions", adminToken, map[string]interface{}{
			"user_id":         alice.ID,
			"resource":        "vault/ledgers",
			"permission_type": "READ",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(t, r, http.MethodPost, "/api/permissions/check", aliceToken, map[string]interface{}{
			"resource":        "vault/ledgers",
			"permission_type": "READ",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["granted"])
	})

	t.Run("Employee Cannot Check Another User", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/permissions/check", aliceToken, map[string]interface{}{
			"resource":        "vault/ledgers",
			"permission_type": "READ",
			"user_id":         alice.ID + 1,
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRevokePermissionEndpoint(t *testing.T) {
	r := setupServer(t)
	_, adminToken := createUser(t, controllers.RoleAdmin)
	alice, aliceToken := createUser(t, controllers.RoleEmployee)

	w := doJSON(t, r, http.MethodPost, "/api/permissions", adminToken, map[string]interface{}{
		"user_id":         alice.ID,
		"resource":        "reports/Q2",
		"permission_type": "WRITE",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	permID := decodeBody(t, w)["id"]

	w = doJSON(t, r, http.MethodDelete, "/api/permissions/"+jsonNumber(permID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("Row Survives As Audit Trail", func(t *testing.T) {
		var rows []database.AccessPermission
		require.NoError(t, database.DB.
			Where("user_id = ? AND resource = ?", alice.ID, "reports/Q2").
			Find(&rows).Error)
		require.Len(t, rows, 1)
		assert.False(t, rows[0].IsActive)
	})

	t.Run("Revoked Grant Is Denied", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/permissions/check", aliceToken, map[string]interface{}{
			"resource":        "reports/Q2",
			"permission_type": "WRITE",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decodeBody(t, w)["granted"])
	})

	t.Run("Re-Grant Reactivates The Same Row", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/permissions", adminToken, map[string]interface{}{
			"user_id":         alice.ID,
			"resource":        "reports/Q2",
			"permission_type": "WRITE",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var rows []database.AccessPermission
		require.NoError(t, database.DB.
			Where("user_id = ? AND resource = ?", alice.ID, "reports/Q2").
			Find(&rows).Error)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].IsActive)
	})
}

func TestVerifyPermissionEndpoint(t *testing.T) {
	r := setupServer(t)
	_, aliceToken := createUser(t, controllers.RoleEmployee)

	t.Run("Deterministic Check Overrules Advisory Grant", func(t *testing.T) {
		// Advisory verdict says yes, the permission store says no
		w := doJSON(t, r, http.MethodPost, "/api/permissions/verify", aliceToken, map[string]interface{}{
			"resource":        "vault/ledgers",
			"permission_type": "READ",
		})
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, false, body["granted"], "the deterministic result is authoritative")

		verdict, ok := body["verdict"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, true, verdict["access_granted"], "the advisory verdict is still reported")
		assert.EqualValues(t, 85, verdict["confidence"])
	})

	t.Run("Degraded Verdict Does Not Fail The Request", func(t *testing.T) {
		controllers.AIService = &stubAIService{degraded: true}
		w := doJSON(t, r, http.MethodPost, "/api/permissions/verify", aliceToken, map[string]interface{}{
			"resource":        "vault/ledgers",
			"permission_type": "READ",
		})
		require.Equal(t, http.StatusOK, w.Code)

		verdict := decodeBody(t, w)["verdict"].(map[string]interface{})
		assert.Equal(t, true, verdict["degraded"])
		assert.Equal(t, string(ai.MonitoringStrict), verdict["monitoring_level"])
	})
}
