package routes_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astracat/catform/analytics"
	"github.com/astracat/catform/app"
	"github.com/astracat/catform/config"
	"github.com/astracat/catform/database"
	"github.com/astracat/catform/httpx"
	"github.com/astracat/catform/ingest"
	"github.com/astracat/catform/routes"
)

const (
	testEmail    = "demo@catform.astracat.ru"
	testPassword = "demo-password"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		DBUrl:         filepath.Join(t.TempDir(), "test.sqlite"),
		TokenSecret:   "test-secret",
		TokenTTL:      time.Minute,
		AdminPassword: testPassword,
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a := app.App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
		Ingestor:     ingest.NewIngestor(db),
		Aggregator:   analytics.NewAggregator(db),
	}
	srv := httptest.NewServer(routes.Wire(a))
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, srv *httptest.Server) (accessToken, refreshToken string) {
	t.Helper()
	req, err := http.NewRequest("POST", srv.URL+"/api/login", nil)
	require.NoError(t, err)
	req.SetBasicAuth(testEmail, testPassword)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken, body.RefreshToken
}

// call sends a JSON request and decodes the JSON object it gets back.
func call(t *testing.T, srv *httptest.Server, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reqBody)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// the oauth middleware answers 401 with a bare JSON string
	var parsed map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &parsed), "body: %s", raw)
	}
	return resp.StatusCode, parsed
}

func formOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	form, ok := body["form"].(map[string]any)
	require.True(t, ok, "missing form in %v", body)
	return form
}

func TestAuthoringAndSubmissionFlow(t *testing.T) {
	srv := newTestServer(t)
	token, _ := login(t, srv)

	status, body := call(t, srv, "POST", "/api/forms", token, map[string]any{
		"title": "Customer survey",
	})
	require.Equal(t, http.StatusCreated, status)
	form := formOf(t, body)
	formID := form["id"].(string)
	assert.Equal(t, "draft", form["status"])

	status, body = call(t, srv, "POST", "/api/forms/"+formID+"/fields", token, map[string]any{
		"type":       "email",
		"label":      "Your email",
		"validation": map[string]any{"required": true},
		"position":   0,
	})
	require.Equal(t, http.StatusCreated, status)
	field := body["field"].(map[string]any)
	fieldID := field["id"].(string)

	status, body = call(t, srv, "PATCH", "/api/forms/"+formID, token, map[string]any{
		"status": "published",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "published", formOf(t, body)["status"])

	// the public surface needs no token
	status, body = call(t, srv, "GET", "/api/forms/"+formID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), formOf(t, body)["view_count"])

	status, body = call(t, srv, "POST", "/api/forms/"+formID+"/responses", "", map[string]any{
		"answers": []map[string]any{{"fieldId": fieldID, "value": "not-an-email"}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation failed", body["error"])
	fields := body["fields"].([]any)
	require.Len(t, fields, 1)
	assert.Equal(t, fieldID, fields[0].(map[string]any)["fieldId"])

	status, body = call(t, srv, "POST", "/api/forms/"+formID+"/responses", "", map[string]any{
		"answers":  []map[string]any{{"fieldId": fieldID, "value": "a@b.com"}},
		"metadata": map[string]any{"country": "US", "deviceType": "desktop"},
	})
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, body["responseId"])

	status, body = call(t, srv, "GET", "/api/forms/"+formID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), formOf(t, body)["response_count"])

	status, body = call(t, srv, "GET", "/api/forms/"+formID+"/responses", token, nil)
	require.Equal(t, http.StatusOK, status)
	responses := body["responses"].([]any)
	require.Len(t, responses, 1)

	status, body = call(t, srv, "GET", "/api/forms/"+formID+"/analytics", token, nil)
	require.Equal(t, http.StatusOK, status)
	a := body["analytics"].(map[string]any)
	counts := a["eventCounts"].([]any)
	require.Len(t, counts, 1)
	assert.Equal(t, "submit", counts[0].(map[string]any)["event_type"])
}

func TestExportDownloadsCSV(t *testing.T) {
	srv := newTestServer(t)
	token, _ := login(t, srv)

	_, body := call(t, srv, "POST", "/api/forms", token, map[string]any{"title": "Export me"})
	formID := formOf(t, body)["id"].(string)
	_, body = call(t, srv, "POST", "/api/forms/"+formID+"/fields", token, map[string]any{
		"type": "text", "label": "Comment", "position": 0,
	})
	fieldID := body["field"].(map[string]any)["id"].(string)
	call(t, srv, "PATCH", "/api/forms/"+formID, token, map[string]any{"status": "published"})
	call(t, srv, "POST", "/api/forms/"+formID+"/responses", "", map[string]any{
		"answers": []map[string]any{{"fieldId": fieldID, "value": "hello"}},
	})

	req, err := http.NewRequest("GET", srv.URL+"/api/forms/"+formID+"/export?format=csv", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// headers are plain, values are stringified
	assert.Contains(t, string(raw), ",Comment\n")
	assert.Contains(t, string(raw), `"hello"`)
}

func TestAuthoringSurfaceRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	status, _ := call(t, srv, "GET", "/api/forms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, srv, "POST", "/api/forms", "", map[string]any{"title": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest("POST", srv.URL+"/api/login", nil)
	require.NoError(t, err)
	req.SetBasicAuth(testEmail, "wrong")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshGrantIssuesNewToken(t *testing.T) {
	srv := newTestServer(t)
	_, refreshToken := login(t, srv)
	require.NotEmpty(t, refreshToken)

	req, err := http.NewRequest("POST", srv.URL+"/api/refresh", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Refresh "+refreshToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.AccessToken)
}

func TestTrackEventRejectsSubmitType(t *testing.T) {
	srv := newTestServer(t)
	token, _ := login(t, srv)

	_, body := call(t, srv, "POST", "/api/forms", token, map[string]any{"title": "Tracked"})
	formID := formOf(t, body)["id"].(string)

	status, _ := call(t, srv, "POST", "/api/forms/"+formID+"/events", "", map[string]any{
		"eventType": "submit",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, srv, "POST", "/api/forms/"+formID+"/events", "", map[string]any{
		"eventType": "view",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["success"])
}
