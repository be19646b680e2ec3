// File path: internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/llm"
	"github.com/geekygoose/gander/internal/sqlite"
	"github.com/geekygoose/gander/internal/storage"
	"github.com/geekygoose/gander/internal/tasks"
)

type fakeProvider struct {
	response llm.ChatResponse
	err      error
}

func (p *fakeProvider) Chat(context.Context, llm.ChatRequest) (llm.ChatResponse, error) {
	return p.response, p.err
}

func (p *fakeProvider) CheckReachability(context.Context) error { return nil }

func (p *fakeProvider) Name() string { return "openai" }

type testEnv struct {
	server  *Server
	catalog *sqlite.Store
}

func newTestEnv(t *testing.T, provider llm.Provider) *testEnv {
	t.Helper()
	dbCfg, err := sqlite.LoadConfig()
	if err != nil {
		t.Fatalf("load sqlite config: %v", err)
	}
	dbCfg.Path = filepath.Join(t.TempDir(), "gander.db")
	catalog, err := sqlite.OpenWithConfig(dbCfg)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	blobs, err := storage.New(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	settings := config.Default()
	settings.OpenAI.APIKey = "test-key"
	settings.TaskBackoff = time.Millisecond
	runtime := config.NewRuntime(settings)
	dispatcher := tasks.NewDispatcher(1, 16, runtime)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dispatcher.Shutdown(ctx)
	})

	validators := func(config.Settings) (llm.Provider, llm.Provider, error) {
		return provider, nil, nil
	}
	srv, err := NewServer(catalog, blobs, runtime, dispatcher, validators)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testEnv{server: srv, catalog: catalog}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) upload(t *testing.T, filename, mimeType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
}

func (e *testEnv) controlIDByCode(t *testing.T, code string) string {
	t.Helper()
	controls, err := e.catalog.ListControls(context.Background())
	if err != nil {
		t.Fatalf("list controls: %v", err)
	}
	for _, control := range controls {
		if control.Code == code {
			return control.ID
		}
	}
	t.Fatalf("control %s not seeded", code)
	return ""
}

func suggestionJSON(code string, confidence float64) string {
	return fmt.Sprintf(`{"suggestions": [{"control_code": %q, "control_title": "Regular Backups", "framework_name": "Essential Eight", "confidence": %.2f, "reasoning": "backup procedures described"}]}`, code, confidence)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	rr := env.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	rr := env.upload(t, "archive.zip", "application/zip", []byte("PK"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not allowed") {
		t.Fatalf("unexpected error body: %s", rr.Body.String())
	}
}

func TestUploadReturnsFallbackSuggestionsAndLinks(t *testing.T) {
	provider := &fakeProvider{response: llm.ChatResponse{Content: suggestionJSON("EE-8", 0.95)}}
	env := newTestEnv(t, provider)

	rr := env.upload(t, "backup_recovery_runbook.txt", "text/plain", []byte("Nightly backups are retained for ninety days and restore tests run quarterly."))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID                string `json:"id"`
		Filename          string `json:"filename"`
		SHA256            string `json:"sha256"`
		SuggestedControls []struct {
			ControlCode string `json:"control_code"`
		} `json:"suggested_controls"`
	}
	decodeBody(t, rr, &resp)
	if resp.ID == "" || resp.Filename != "backup_recovery_runbook.txt" {
		t.Fatalf("unexpected document: %+v", resp)
	}
	if len(resp.SHA256) != 64 {
		t.Fatalf("sha256 = %q", resp.SHA256)
	}
	if len(resp.SuggestedControls) == 0 || resp.SuggestedControls[0].ControlCode != "EE-8" {
		t.Fatalf("fallback suggestions = %+v", resp.SuggestedControls)
	}

	// The detached AI pass should record a high-confidence link shortly.
	deadline := time.Now().Add(5 * time.Second)
	for {
		links, err := env.catalog.LinksForDocument(context.Background(), resp.ID)
		if err != nil {
			t.Fatalf("links for document: %v", err)
		}
		if len(links) == 1 {
			if links[0].Confidence != 0.95 {
				t.Fatalf("link confidence = %f", links[0].Confidence)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("classification link never appeared")
		}
		time.Sleep(20 * time.Millisecond)
	}

	list := env.do(t, http.MethodGet, "/v1/documents", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("list status = %d", list.Code)
	}
	var listing struct {
		Documents []struct {
			ID string `json:"id"`
		} `json:"documents"`
	}
	decodeBody(t, list, &listing)
	if len(listing.Documents) != 1 || listing.Documents[0].ID != resp.ID {
		t.Fatalf("unexpected listing: %+v", listing)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	frameworks := env.do(t, http.MethodGet, "/v1/frameworks", nil)
	var fwResp struct {
		Frameworks []struct {
			Name string `json:"name"`
		} `json:"frameworks"`
	}
	decodeBody(t, frameworks, &fwResp)
	if len(fwResp.Frameworks) != 1 || fwResp.Frameworks[0].Name != "Essential Eight" {
		t.Fatalf("frameworks = %+v", fwResp)
	}

	controls := env.do(t, http.MethodGet, "/v1/controls", nil)
	var ctrlResp struct {
		Controls []struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		} `json:"controls"`
	}
	decodeBody(t, controls, &ctrlResp)
	if len(ctrlResp.Controls) != 8 {
		t.Fatalf("controls = %d, want 8", len(ctrlResp.Controls))
	}

	detail := env.do(t, http.MethodGet, "/v1/controls/"+ctrlResp.Controls[0].ID, nil)
	if detail.Code != http.StatusOK {
		t.Fatalf("detail status = %d", detail.Code)
	}
	var detailResp struct {
		Code         string `json:"code"`
		Requirements []struct {
			ID string `json:"id"`
		} `json:"requirements"`
	}
	decodeBody(t, detail, &detailResp)
	if detailResp.Code != ctrlResp.Controls[0].Code || len(detailResp.Requirements) == 0 {
		t.Fatalf("detail = %+v", detailResp)
	}

	missing := env.do(t, http.MethodGet, "/v1/controls/nope", nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("missing control status = %d", missing.Code)
	}
}

func TestScanRequiresEvidence(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	controlID := env.controlIDByCode(t, "EE-8")
	rr := env.do(t, http.MethodPost, "/v1/controls/"+controlID+"/scans", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "no evidence") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestEvidenceLinkAndScanLifecycle(t *testing.T) {
	// Empty model output: every requirement is filled in as NOT_FOUND.
	provider := &fakeProvider{response: llm.ChatResponse{Content: `{"requirements": [], "gaps": []}`}}
	env := newTestEnv(t, provider)

	uploadResp := env.upload(t, "backup_schedule.txt", "text/plain", []byte("Backups run nightly at 02:00."))
	if uploadResp.Code != http.StatusOK {
		t.Fatalf("upload status = %d", uploadResp.Code)
	}
	var doc struct {
		ID string `json:"id"`
	}
	decodeBody(t, uploadResp, &doc)

	controlID := env.controlIDByCode(t, "EE-8")
	linkResp := env.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/evidence", map[string]string{
		"control_id": controlID,
		"note":       "nightly schedule",
	})
	if linkResp.Code != http.StatusOK {
		t.Fatalf("link status = %d: %s", linkResp.Code, linkResp.Body.String())
	}

	evidence := env.do(t, http.MethodGet, "/v1/controls/"+controlID+"/evidence", nil)
	var evResp struct {
		Evidence []struct {
			Note     string `json:"note"`
			Document struct {
				ID string `json:"id"`
			} `json:"document"`
		} `json:"evidence"`
	}
	decodeBody(t, evidence, &evResp)
	if len(evResp.Evidence) != 1 || evResp.Evidence[0].Document.ID != doc.ID {
		t.Fatalf("evidence = %+v", evResp)
	}
	if evResp.Evidence[0].Note != "nightly schedule" {
		t.Fatalf("note = %q", evResp.Evidence[0].Note)
	}

	create := env.do(t, http.MethodPost, "/v1/controls/"+controlID+"/scans", nil)
	if create.Code != http.StatusOK {
		t.Fatalf("scan create status = %d: %s", create.Code, create.Body.String())
	}
	var created struct {
		ScanID string `json:"scan_id"`
		Status string `json:"status"`
	}
	decodeBody(t, create, &created)
	if created.ScanID == "" || created.Status != sqlite.ScanStatusPending {
		t.Fatalf("created = %+v", created)
	}

	var status struct {
		Status                string `json:"status"`
		ProgressPercentage    int    `json:"progress_percentage"`
		TotalRequirements     int    `json:"total_requirements"`
		ProcessedRequirements int    `json:"processed_requirements"`
		Results               []struct {
			Outcome string `json:"outcome"`
		} `json:"results"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		rr := env.do(t, http.MethodGet, "/v1/scans/"+created.ScanID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("scan status code = %d", rr.Code)
		}
		decodeBody(t, rr, &status)
		if status.Status == sqlite.ScanStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scan never completed, last status %+v", status)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if status.ProgressPercentage != 100 {
		t.Fatalf("progress = %d, want 100", status.ProgressPercentage)
	}
	if status.TotalRequirements != 3 || status.ProcessedRequirements != 3 {
		t.Fatalf("requirement counters = %d/%d, want 3/3",
			status.ProcessedRequirements, status.TotalRequirements)
	}
	if len(status.Results) != 3 {
		t.Fatalf("results = %d, want one per requirement", len(status.Results))
	}
	for _, result := range status.Results {
		if result.Outcome != "NOT_FOUND" {
			t.Fatalf("outcome = %q", result.Outcome)
		}
	}

	scans := env.do(t, http.MethodGet, "/v1/controls/"+controlID+"/scans", nil)
	var scanList struct {
		Scans []struct {
			ID string `json:"id"`
		} `json:"scans"`
	}
	decodeBody(t, scans, &scanList)
	if len(scanList.Scans) != 1 || scanList.Scans[0].ID != created.ScanID {
		t.Fatalf("scan list = %+v", scanList)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	get := env.do(t, http.MethodGet, "/v1/settings/ai", nil)
	var current settingsResponse
	decodeBody(t, get, &current)
	if current.Provider != "openai" {
		t.Fatalf("provider = %q", current.Provider)
	}
	if current.OpenAIAPIKey != redactedAPIKey {
		t.Fatalf("api key should be redacted, got %q", current.OpenAIAPIKey)
	}

	minConfidence := 0.8
	dual := true
	save := env.do(t, http.MethodPost, "/v1/settings/ai", settingsRequest{
		Provider:       "ollama",
		OllamaModel:    "qwen2.5:32b",
		MinConfidence:  &minConfidence,
		DualValidation: &dual,
	})
	if save.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", save.Code, save.Body.String())
	}

	get = env.do(t, http.MethodGet, "/v1/settings/ai", nil)
	decodeBody(t, get, &current)
	if current.Provider != "ollama" || current.OllamaModel != "qwen2.5:32b" {
		t.Fatalf("settings = %+v", current)
	}
	if current.MinConfidence != 0.8 || !current.DualValidation {
		t.Fatalf("settings = %+v", current)
	}
	// The stored key survives a save that omitted it.
	if current.OpenAIAPIKey != redactedAPIKey {
		t.Fatalf("api key lost on save")
	}

	bad := env.do(t, http.MethodPost, "/v1/settings/ai", settingsRequest{Provider: "claude"})
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("bad provider status = %d", bad.Code)
	}
}

func TestSettingsTestRequiresCredential(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	// Strip the key so the hosted default endpoint has no credential.
	settings := config.Default()
	env.server.cfg.Update(settings)
	rr := env.do(t, http.MethodPost, "/v1/settings/ai/test", settingsRequest{Provider: "openai"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	rr := env.upload(t, "notes.txt", "text/plain", []byte("patching notes"))
	var doc struct {
		ID string `json:"id"`
	}
	decodeBody(t, rr, &doc)

	del := env.do(t, http.MethodDelete, "/v1/documents/"+doc.ID, nil)
	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d", del.Code)
	}
	missing := env.do(t, http.MethodGet, "/v1/documents/"+doc.ID, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", missing.Code)
	}
}
