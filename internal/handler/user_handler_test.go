package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/artdirector-api/internal/dto"
)

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return req
}

func TestUserProfileLifecycle(t *testing.T) {
	ta := setupTestApp(t)

	resp, payload := ta.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), &student)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, payload.Data)

	resp, payload = ta.do(t, jsonRequest(t, http.MethodPost, "/api/v1/me", map[string]string{"role": "student"}), &student)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var user dto.UserResponse
	require.NoError(t, json.Unmarshal(payload.Data, &user))
	require.Equal(t, "student", user.Role)
	require.Equal(t, "Ada", user.Name)

	resp, payload = ta.do(t, jsonRequest(t, http.MethodPost, "/api/v1/me", map[string]string{"role": "teacher"}), &student)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(payload.Data, &user))
	require.Equal(t, "student", user.Role)

	resp, payload = ta.do(t, jsonRequest(t, http.MethodPatch, "/api/v1/me/role", map[string]string{"role": "teacher"}), &student)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(payload.Data, &user))
	require.Equal(t, "teacher", user.Role)

	resp, payload = ta.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), &student)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(payload.Data, &user))
	require.Equal(t, "teacher", user.Role)
}

func TestUserRoleRejectsUnknownRole(t *testing.T) {
	ta := setupTestApp(t)

	resp, payload := ta.do(t, jsonRequest(t, http.MethodPost, "/api/v1/me", map[string]string{"role": "admin"}), &mentor)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "oneof=student teacher", payload.Details["role"])
}

func TestUserRoleUpdateRequiresProfile(t *testing.T) {
	ta := setupTestApp(t)

	resp, _ := ta.do(t, jsonRequest(t, http.MethodPatch, "/api/v1/me/role", map[string]string{"role": "teacher"}), &other)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
