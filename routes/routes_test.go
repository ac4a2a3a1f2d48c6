package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"framepress/config"
	"framepress/credentials"
	"framepress/failures"
	"framepress/fetch"
	"framepress/job"
	"framepress/models"
	"framepress/probe"
	"framepress/success"
	"framepress/utils"
)

// initTestStores points all persistent stores at a temp directory.
func initTestStores(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	if err := credentials.OpenDB(filepath.Join(dir, "credentials.db")); err != nil {
		t.Fatalf("Failed to open credentials store: %v", err)
	}
	if err := failures.Init(filepath.Join(dir, "failures.db")); err != nil {
		t.Fatalf("Failed to open failures store: %v", err)
	}
	if err := success.Init(filepath.Join(dir, "success.db")); err != nil {
		t.Fatalf("Failed to open success store: %v", err)
	}
	t.Cleanup(func() {
		credentials.CloseDB()
		failures.Close()
		success.Close()
	})
}

// initTestPipeline wires a pipeline whose stages are in-process fakes.
func initTestPipeline(t *testing.T) {
	t.Helper()
	p := job.New(config.LoadSettings())
	p.ToolErr = nil
	p.WorkDir = t.TempDir()
	p.Fetch = func(ctx context.Context, rawURL string, creds map[string]string, ceiling int64, timeout time.Duration) (*fetch.Result, error) {
		return &fetch.Result{Bytes: make([]byte, 4096), ContentType: "image/gif"}, nil
	}
	p.Probe = func(ctx context.Context, ffprobePath, path string, timeout time.Duration) (*probe.Info, error) {
		return &probe.Info{FormatName: "gif", Codec: "gif", Width: 480, Height: 270}, nil
	}
	p.Run = func(ctx context.Context, ffmpegPath string, args []string, timeout time.Duration) error {
		return os.WriteFile(args[len(args)-1], make([]byte, 100), 0644)
	}
	Init(p)
}

func TestConvertHandlerSuccess(t *testing.T) {
	t.Setenv("FRAMEPRESS_INSECURE_NO_AUTH", "1")
	initTestStores(t)
	initTestPipeline(t)

	body, _ := json.Marshal(models.MediaRequest{
		URL:  "https://example.com/routes-success.gif",
		Kind: models.KindAnimatedImage,
	})
	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(body))
	w := httptest.NewRecorder()
	ConvertHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID       string `json:"id"`
		Data     []byte `json:"data"`
		MimeType string `json:"mimeType"`
		Inline   bool   `json:"inline"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Data) != 100 {
		t.Errorf("Expected 100-byte inline payload, got %d", len(resp.Data))
	}
	if resp.MimeType != "video/webm" {
		t.Errorf("Expected video/webm, got %s", resp.MimeType)
	}
	if !resp.Inline {
		t.Error("Payload should be marked inline")
	}

	// state endpoint sees the completed conversion
	sreq := httptest.NewRequest(http.MethodGet, "/status?id="+resp.ID, nil)
	sw := httptest.NewRecorder()
	StatusHandler(sw, sreq)
	if sw.Code != http.StatusOK {
		t.Fatalf("Status returned %d", sw.Code)
	}
	var status ConversionStatusResponse
	json.Unmarshal(sw.Body.Bytes(), &status)
	if status.State != "completed" {
		t.Errorf("Expected completed state, got %s", status.State)
	}

	// success record was written
	rec, err := success.GetSuccess(resp.ID)
	if err != nil || rec == nil {
		t.Errorf("Expected success record for %s, got %v / %v", resp.ID, rec, err)
	}
}

func TestConvertHandlerFailureTaxonomy(t *testing.T) {
	t.Setenv("FRAMEPRESS_INSECURE_NO_AUTH", "1")
	initTestStores(t)
	initTestPipeline(t)

	// make every download fail
	pipeline.Fetch = func(ctx context.Context, rawURL string, creds map[string]string, ceiling int64, timeout time.Duration) (*fetch.Result, error) {
		return nil, context.DeadlineExceeded
	}

	body, _ := json.Marshal(models.MediaRequest{
		URL:  "https://example.com/routes-timeout.gif",
		Kind: models.KindAnimatedImage,
	})
	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(body))
	w := httptest.NewRecorder()
	ConvertHandler(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("Download failure should map to 502, got %d", w.Code)
	}

	var resp failureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode failure response: %v", err)
	}
	if resp.Kind != "download" {
		t.Errorf("Expected download kind, got %s", resp.Kind)
	}

	// the failure is queryable afterwards
	freq := httptest.NewRequest(http.MethodGet, "/failures?id="+resp.ID, nil)
	fw := httptest.NewRecorder()
	FailureQueryHandler(fw, freq)
	if fw.Code != http.StatusOK {
		t.Fatalf("Failure query returned %d", fw.Code)
	}
	var fresp map[string]any
	json.Unmarshal(fw.Body.Bytes(), &fresp)
	if fresp["status"] != "failed" || fresp["kind"] != "download" {
		t.Errorf("Unexpected failure query response: %v", fresp)
	}
}

func TestConvertHandlerRejectsBadRequests(t *testing.T) {
	t.Setenv("FRAMEPRESS_INSECURE_NO_AUTH", "1")
	initTestStores(t)
	initTestPipeline(t)

	// wrong method
	w := httptest.NewRecorder()
	ConvertHandler(w, httptest.NewRequest(http.MethodGet, "/convert", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", w.Code)
	}

	// malformed body
	w = httptest.NewRecorder()
	ConvertHandler(w, httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader([]byte("{"))))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", w.Code)
	}

	// invalid request
	body, _ := json.Marshal(models.MediaRequest{URL: "https://example.com/a.gif", Kind: "sticker"})
	w = httptest.NewRecorder()
	ConvertHandler(w, httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(body)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown kind, got %d", w.Code)
	}

	// unknown credential key
	body, _ = json.Marshal(models.MediaRequest{
		URL:           "s3://bucket/key.gif",
		Kind:          models.KindAnimatedImage,
		CredentialKey: "never-registered",
	})
	w = httptest.NewRecorder()
	ConvertHandler(w, httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(body)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown credential key, got %d", w.Code)
	}
}

func TestConvertHandlerAuth(t *testing.T) {
	t.Setenv("FRAMEPRESS_INSECURE_NO_AUTH", "")
	t.Setenv("FRAMEPRESS_JWT_SECRET", "routes-test-secret-0123456789abcdef")
	initTestStores(t)
	initTestPipeline(t)

	body, _ := json.Marshal(models.MediaRequest{
		URL:  "https://example.com/routes-auth.gif",
		Kind: models.KindAnimatedImage,
	})

	// no token
	w := httptest.NewRecorder()
	ConvertHandler(w, httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(body)))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}

	// valid token
	token, err := utils.CreateFramepressJWT(&models.FramepressJWT{
		Subject:   "tester",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}, []byte("routes-test-secret-0123456789abcdef"))
	if err != nil {
		t.Fatalf("Failed to mint token: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	ConvertHandler(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid token, got %d: %s", w.Code, w.Body.String())
	}

	// token without s3 in its sources cannot convert s3 urls
	s3body, _ := json.Marshal(models.MediaRequest{
		URL:  "s3://bucket/key.gif",
		Kind: models.KindAnimatedImage,
	})
	req = httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(s3body))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	ConvertHandler(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for disallowed scheme, got %d", w.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	// wrong method
	w := httptest.NewRecorder()
	StatusHandler(w, httptest.NewRequest(http.MethodPost, "/status", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}

	// missing id
	w = httptest.NewRecorder()
	StatusHandler(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}

	// unknown id
	w = httptest.NewRecorder()
	StatusHandler(w, httptest.NewRequest(http.MethodGet, "/status?id=ghost", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	// tracked id
	if err := job.Track("routes-status-test", func() {}); err != nil {
		t.Fatalf("Track returned error: %v", err)
	}
	defer job.Finish("routes-status-test", job.StateFailed)

	w = httptest.NewRecorder()
	StatusHandler(w, httptest.NewRequest(http.MethodGet, "/status?id=routes-status-test", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp ConversionStatusResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.State != "processing" {
		t.Errorf("Expected processing, got %s", resp.State)
	}
}

func TestCancelHandler(t *testing.T) {
	// unknown id
	w := httptest.NewRecorder()
	CancelHandler(w, httptest.NewRequest(http.MethodDelete, "/cancel?id=ghost", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	// in-flight conversion
	cancelled := false
	if err := job.Track("routes-cancel-test", func() { cancelled = true }); err != nil {
		t.Fatalf("Track returned error: %v", err)
	}

	w = httptest.NewRecorder()
	CancelHandler(w, httptest.NewRequest(http.MethodDelete, "/cancel?id=routes-cancel-test", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	if !cancelled {
		t.Error("Cancel handler should propagate cancellation")
	}

	// cancelling again conflicts
	w = httptest.NewRecorder()
	CancelHandler(w, httptest.NewRequest(http.MethodDelete, "/cancel?id=routes-cancel-test", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", w.Code)
	}
}

func TestRegisterCredentialsHandler(t *testing.T) {
	t.Setenv("FRAMEPRESS_INSECURE_NO_AUTH", "1")
	initTestStores(t)

	body, _ := json.Marshal(map[string]string{"accessKey": "AKIA123", "secretKey": "shhh"})
	w := httptest.NewRecorder()
	RegisterCredentialsHandler(w, httptest.NewRequest(http.MethodPost, "/credentials", bytes.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	key := resp["access_key"]
	if len(key) != 32 {
		t.Fatalf("Expected 32-character access key, got %q", key)
	}

	stored, err := credentials.GetCredentials(key)
	if err != nil || stored == nil {
		t.Fatalf("Stored credentials not retrievable: %v", err)
	}
	if stored["accessKey"] != "AKIA123" {
		t.Errorf("Credential payload mismatch: %v", stored)
	}

	// empty payloads are rejected
	w = httptest.NewRecorder()
	RegisterCredentialsHandler(w, httptest.NewRequest(http.MethodPost, "/credentials", bytes.NewReader([]byte("{}"))))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty credentials, got %d", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	initTestStores(t)

	w := httptest.NewRecorder()
	HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Expected healthy status, got %s", resp.Status)
	}
	if resp.GoVersion == "" {
		t.Error("Go version should be reported")
	}
}

func TestVersionHandler(t *testing.T) {
	w := httptest.NewRecorder()
	VersionHandler(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp VersionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode version response: %v", err)
	}
	if resp.Version == "" {
		t.Error("Version should never be empty")
	}
}

func TestSuccessQueryHandler(t *testing.T) {
	initTestStores(t)

	if err := success.StoreSuccess(success.SuccessRecord{
		ID:          "routes-success-query",
		MimeType:    "video/webm",
		OutputBytes: 4242,
		Passes:      2,
	}); err != nil {
		t.Fatalf("StoreSuccess returned error: %v", err)
	}

	w := httptest.NewRecorder()
	SuccessQueryHandler(w, httptest.NewRequest(http.MethodGet, "/success?id=routes-success-query", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var rec success.SuccessRecord
	json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.OutputBytes != 4242 || rec.Passes != 2 {
		t.Errorf("Unexpected record: %+v", rec)
	}

	// listing includes the record
	w = httptest.NewRecorder()
	SuccessListHandler(w, httptest.NewRequest(http.MethodGet, "/success/list", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var listResp struct {
		Count int `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &listResp)
	if listResp.Count != 1 {
		t.Errorf("Expected 1 record in list, got %d", listResp.Count)
	}
}

func TestFailureQueryHandlerNoFailure(t *testing.T) {
	initTestStores(t)

	w := httptest.NewRecorder()
	FailureQueryHandler(w, httptest.NewRequest(http.MethodGet, "/failures?id=spotless", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "no-failure" {
		t.Errorf("Expected no-failure status, got %v", resp["status"])
	}
}
