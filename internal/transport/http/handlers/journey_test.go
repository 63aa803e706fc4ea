package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"pmds/internal/app/server"
	"pmds/internal/domain/auth"
	"pmds/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestAgreementJourneyToCompletion(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	tenantID := getTenantID(t, app, "Test Tenant")

	suffix := time.Now().UnixNano()
	supervisorID := createUserWithRole(t, app, tenantID, auth.RoleManager, testAccount{
		email:    fmt.Sprintf("supervisor-%d@example.com", suffix),
		password: "Supervisor123!",
		persal:   fmt.Sprintf("S%d", suffix),
	})
	createUserWithRole(t, app, tenantID, auth.RoleEmployee, testAccount{
		email:     fmt.Sprintf("employee-%d@example.com", suffix),
		password:  "Employee123!",
		persal:    fmt.Sprintf("E%d", suffix),
		managerID: supervisorID,
	})

	hrToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")
	employeeToken := login(t, client, ts.URL, fmt.Sprintf("employee-%d@example.com", suffix), "Employee123!")
	supervisorToken := login(t, client, ts.URL, fmt.Sprintf("supervisor-%d@example.com", suffix), "Supervisor123!")

	created := postJSON(t, client, ts.URL+"/api/v1/agreements", employeeToken, map[string]any{})
	agreementID := envelopeField(t, created, "id")
	if got := envelopeField(t, created, "status"); got != "DRAFT" {
		t.Fatalf("expected DRAFT, got %s", got)
	}

	postJSON(t, client, ts.URL+"/api/v1/agreements/"+agreementID+"/kras", employeeToken, map[string]any{
		"description":          "Deliver the quarterly curriculum plan",
		"performanceObjective": "Plan delivered on time",
		"weighting":            "100",
		"targetDate":           time.Now().AddDate(0, 6, 0).Format("2006-01-02"),
	})

	submitURL := ts.URL + "/api/v1/agreements/" + agreementID + "/transitions/submit"
	status, env := postJSONAnyStatusWithHeaders(t, client, submitURL, employeeToken, map[string]any{}, map[string]string{"Idempotency-Key": "submit-1"})
	if status != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d", status)
	}
	if got := recordStatus(t, env); got != "PENDING_SUPERVISOR_RATING" {
		t.Fatalf("expected PENDING_SUPERVISOR_RATING after submit, got %s", got)
	}

	status, replay := postJSONAnyStatusWithHeaders(t, client, submitURL, employeeToken, map[string]any{}, map[string]string{"Idempotency-Key": "submit-1"})
	if status != http.StatusOK {
		t.Fatalf("replayed submit: expected 200, got %d", status)
	}
	if got := recordStatus(t, replay); got != "PENDING_SUPERVISOR_RATING" {
		t.Fatalf("expected replayed submit to return the stored response, got status %s", got)
	}

	status, env = postJSONAnyStatusWithHeaders(t, client, submitURL, employeeToken, map[string]any{"comment": "different"}, map[string]string{"Idempotency-Key": "submit-1"})
	if status != http.StatusConflict {
		t.Fatalf("expected reused key with another body to conflict, got %d", status)
	}

	status, env = postJSONAnyStatusWithHeaders(t, client, ts.URL+"/api/v1/agreements/"+agreementID+"/transitions/hr_verify", employeeToken, map[string]any{}, nil)
	if status != http.StatusConflict && status != http.StatusForbidden {
		t.Fatalf("expected hr_verify from the wrong state to be refused, got %d", status)
	}

	postTransition(t, client, ts.URL, supervisorToken, agreementID, "supervisor_signoff", "PENDING_MANAGER_APPROVAL")
	postTransition(t, client, ts.URL, hrToken, agreementID, "manager_approve", "PENDING_HR_VERIFICATION")
	postTransition(t, client, ts.URL, hrToken, agreementID, "hr_verify", "COMPLETED")

	status, env = putJSONAnyStatus(t, client, ts.URL+"/api/v1/agreements/"+agreementID, employeeToken, map[string]any{"employeeComments": "late edit"})
	if status != http.StatusConflict {
		t.Fatalf("expected completed agreement to refuse edits, got %d", status)
	}
	if env.Error == nil || env.Error.Code != "conflict" {
		t.Fatalf("expected conflict error code, got %+v", env.Error)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	tenantID := getTenantID(t, app, "Test Tenant")

	suffix := time.Now().UnixNano()
	supervisorID := createUserWithRole(t, app, tenantID, auth.RoleManager, testAccount{
		email:    fmt.Sprintf("rej-supervisor-%d@example.com", suffix),
		password: "Supervisor123!",
		persal:   fmt.Sprintf("RS%d", suffix),
	})
	createUserWithRole(t, app, tenantID, auth.RoleEmployee, testAccount{
		email:     fmt.Sprintf("rej-employee-%d@example.com", suffix),
		password:  "Employee123!",
		persal:    fmt.Sprintf("RE%d", suffix),
		managerID: supervisorID,
	})
	employeeToken := login(t, client, ts.URL, fmt.Sprintf("rej-employee-%d@example.com", suffix), "Employee123!")
	supervisorToken := login(t, client, ts.URL, fmt.Sprintf("rej-supervisor-%d@example.com", suffix), "Supervisor123!")

	created := postJSON(t, client, ts.URL+"/api/v1/agreements", employeeToken, map[string]any{})
	agreementID := envelopeField(t, created, "id")
	postTransition(t, client, ts.URL, employeeToken, agreementID, "submit", "PENDING_SUPERVISOR_RATING")

	status, env := postJSONAnyStatusWithHeaders(t, client, ts.URL+"/api/v1/agreements/"+agreementID+"/transitions/reject", supervisorToken, map[string]any{}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected reject without reason to fail validation, got %d", status)
	}
	if env.Error == nil || env.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %+v", env.Error)
	}

	status, env = postJSONAnyStatusWithHeaders(t, client, ts.URL+"/api/v1/agreements/"+agreementID+"/transitions/reject", supervisorToken, map[string]any{"reason": "objectives are vague"}, nil)
	if status != http.StatusOK {
		t.Fatalf("expected reject with reason to succeed, got %d", status)
	}
	if got := recordStatus(t, env); got != "REJECTED" {
		t.Fatalf("expected REJECTED, got %s", got)
	}

	// the employee resubmits from the rejected state
	postTransition(t, client, ts.URL, employeeToken, agreementID, "submit", "PENDING_SUPERVISOR_RATING")
}

func TestEmployeeCannotSeeOtherAgreements(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	tenantID := getTenantID(t, app, "Test Tenant")

	suffix := time.Now().UnixNano()
	supervisorID := createUserWithRole(t, app, tenantID, auth.RoleManager, testAccount{
		email:    fmt.Sprintf("vis-supervisor-%d@example.com", suffix),
		password: "Supervisor123!",
		persal:   fmt.Sprintf("VS%d", suffix),
	})
	createUserWithRole(t, app, tenantID, auth.RoleEmployee, testAccount{
		email:     fmt.Sprintf("vis-owner-%d@example.com", suffix),
		password:  "Employee123!",
		persal:    fmt.Sprintf("VO%d", suffix),
		managerID: supervisorID,
	})
	createUserWithRole(t, app, tenantID, auth.RoleEmployee, testAccount{
		email:     fmt.Sprintf("vis-other-%d@example.com", suffix),
		password:  "Employee123!",
		persal:    fmt.Sprintf("VX%d", suffix),
		managerID: supervisorID,
	})
	ownerToken := login(t, client, ts.URL, fmt.Sprintf("vis-owner-%d@example.com", suffix), "Employee123!")
	otherToken := login(t, client, ts.URL, fmt.Sprintf("vis-other-%d@example.com", suffix), "Employee123!")

	created := postJSON(t, client, ts.URL+"/api/v1/agreements", ownerToken, map[string]any{})
	agreementID := envelopeField(t, created, "id")

	getJSONStatus(t, client, ts.URL+"/api/v1/agreements/"+agreementID, otherToken, http.StatusNotFound)
	getJSONStatus(t, client, ts.URL+"/api/v1/agreements/"+agreementID, ownerToken, http.StatusOK)
}

func startApp(t *testing.T) (*server.App, *httptest.Server) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	app, err := server.New(context.Background(), testConfig(t, dbURL))
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)
	return app, ts
}

func testConfig(t *testing.T, dbURL string) config.Config {
	return config.Config{
		DatabaseURL:        dbURL,
		DBConnectTimeout:   10 * time.Second,
		JWTSecret:          "test-secret",
		DataEncryptionKey:  "0123456789abcdef0123456789abcdef",
		FrontendDir:        "frontend/dist",
		Environment:        "test",
		SeedTenantName:     "Test Tenant",
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		SeedSalaryLevels:   true,
		EmailFrom:          "no-reply@test.local",
		StorageDriver:      config.StorageLocal,
		StorageDir:         t.TempDir(),
		MaxUploadBytes:     1 << 20,
		RunMigrations:      true,
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
	}
}

func getTenantID(t *testing.T, app *server.App, tenantName string) string {
	t.Helper()
	ctx := context.Background()
	var tenantID string
	if err := app.DB.QueryRow(ctx, "SELECT id FROM tenants WHERE name = $1", tenantName).Scan(&tenantID); err != nil {
		t.Fatalf("failed to load tenant: %v", err)
	}
	return tenantID
}

type testAccount struct {
	email     string
	password  string
	persal    string
	managerID string
}

func createUserWithRole(t *testing.T, app *server.App, tenantID, roleName string, account testAccount) string {
	t.Helper()
	ctx := context.Background()
	var roleID string
	if err := app.DB.QueryRow(ctx, "SELECT id FROM roles WHERE tenant_id = $1 AND name = $2", tenantID, roleName).Scan(&roleID); err != nil {
		t.Fatalf("failed to load role: %v", err)
	}
	hash, err := auth.HashPassword(account.password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	var managerID *string
	if account.managerID != "" {
		managerID = &account.managerID
	}
	var userID string
	if err := app.DB.QueryRow(ctx, `
    INSERT INTO users (tenant_id, email, username, password_hash, role_id, first_name, last_name, employee_id, persal_number, manager_id)
    VALUES ($1,$2,$2,$3,$4,'Test','User',$5,$5,$6)
    RETURNING id
  `, tenantID, account.email, hash, roleID, account.persal, managerID).Scan(&userID); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return userID
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	token := envelopeField(t, resp, "token")
	if token == "" {
		t.Fatal("expected token")
	}
	return token
}

func postTransition(t *testing.T, client *http.Client, baseURL, token, agreementID, action, want string) {
	t.Helper()
	status, env := postJSONAnyStatusWithHeaders(t, client, baseURL+"/api/v1/agreements/"+agreementID+"/transitions/"+action, token, map[string]any{}, nil)
	if status != http.StatusOK {
		t.Fatalf("%s: expected 200, got %d (%+v)", action, status, env.Error)
	}
	if got := recordStatus(t, env); got != want {
		t.Fatalf("%s: expected %s, got %s", action, want, got)
	}
}

func recordStatus(t *testing.T, env envelope) string {
	t.Helper()
	var payload struct {
		Record struct {
			Status string `json:"status"`
		} `json:"record"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("failed to decode transition result: %v", err)
	}
	return payload.Record.Status
}

func envelopeField(t *testing.T, env envelope, field string) string {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("failed to decode envelope data: %v", err)
	}
	value, _ := payload[field].(string)
	return value
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	status, env := postJSONAnyStatusWithHeaders(t, client, url, token, body, nil)
	if status >= 400 {
		t.Fatalf("unexpected status %d: %+v", status, env.Error)
	}
	return env
}

func postJSONAnyStatusWithHeaders(t *testing.T, client *http.Client, url, token string, body any, headers map[string]string) (int, envelope) {
	t.Helper()
	return doJSON(t, client, http.MethodPost, url, token, body, headers)
}

func putJSONAnyStatus(t *testing.T, client *http.Client, url, token string, body any) (int, envelope) {
	t.Helper()
	return doJSON(t, client, http.MethodPut, url, token, body, nil)
}

func getJSONStatus(t *testing.T, client *http.Client, url, token string, want int) envelope {
	t.Helper()
	status, env := doJSON(t, client, http.MethodGet, url, token, nil, nil)
	if status != want {
		t.Fatalf("expected status %d, got %d (%+v)", want, status, env.Error)
	}
	return env
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any, headers map[string]string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode envelope %q: %v", string(raw), err)
	}
	return resp.StatusCode, env
}
