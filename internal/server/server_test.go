package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/b3ngr33n/docuchat-go/internal/convo"
	"github.com/b3ngr33n/docuchat-go/internal/core"
)

// fakeService records calls and returns canned results.
type fakeService struct {
	ingestReq    *core.IngestRequest
	ingestRes    *core.IngestResult
	ingestErr    error
	queryAnswer  string
	queryErr     error
	collections  []string
	transcript   []convo.Turn
	transcriptErr error
	clearErr     error
	deleteErr    error
	cleared      []string
	deleted      []string
}

func (f *fakeService) Ingest(ctx context.Context, req core.IngestRequest) (*core.IngestResult, error) {
	f.ingestReq = &req
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	if f.ingestRes != nil {
		return f.ingestRes, nil
	}
	return &core.IngestResult{Collection: req.Collection}, nil
}

func (f *fakeService) Query(ctx context.Context, collection, question string) (string, error) {
	if f.queryErr != nil {
		return "", f.queryErr
	}
	return f.queryAnswer, nil
}

func (f *fakeService) Collections(ctx context.Context) ([]string, error) {
	return f.collections, nil
}

func (f *fakeService) Transcript(ctx context.Context, collection string) ([]convo.Turn, error) {
	if f.transcriptErr != nil {
		return nil, f.transcriptErr
	}
	return f.transcript, nil
}

func (f *fakeService) ClearTranscript(ctx context.Context, collection string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, collection)
	return nil
}

func (f *fakeService) DeleteCollection(ctx context.Context, collection string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, collection)
	return nil
}

// newTestServer builds a Server around the fake with a fresh registry.
func newTestServer(t *testing.T, svc service, cfg *Config) *Server {
	t.Helper()
	s, err := newWithRegistry(svc, cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newWithRegistry: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

// do routes the request through the full middleware chain.
func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for name, content := range files {
		fw, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func Test_HandleIndex_TextOnly(t *testing.T) {
	t.Parallel()
	svc := &fakeService{ingestRes: &core.IngestResult{Collection: "docs", Segments: 3}}
	s := newTestServer(t, svc, nil)

	body, ctype := multipartBody(t, map[string]string{
		"collectionName": "docs",
		"text":           "some raw text",
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/index", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.ingestReq == nil || svc.ingestReq.Text != "some raw text" || svc.ingestReq.Collection != "docs" {
		t.Errorf("service saw wrong request: %+v", svc.ingestReq)
	}

	var res core.IngestResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Segments != 3 {
		t.Errorf("want 3 segments in response, got %d", res.Segments)
	}
}

func Test_HandleIndex_SpoolsUploads(t *testing.T) {
	t.Parallel()
	svc := &fakeService{}
	s := newTestServer(t, svc, nil)

	body, ctype := multipartBody(t, map[string]string{"collectionName": "docs"},
		map[string][]byte{"a.pdf": []byte("%PDF-1.4 fake"), "b.pdf": []byte("%PDF-1.4 fake")})

	req := httptest.NewRequest(http.MethodPost, "/index", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.ingestReq.PDFPaths) != 2 {
		t.Errorf("want 2 spooled paths, got %d", len(svc.ingestReq.PDFPaths))
	}
	for _, p := range svc.ingestReq.PDFPaths {
		if !strings.HasSuffix(p, ".pdf") {
			t.Errorf("spooled file must keep .pdf suffix: %s", p)
		}
	}
}

func Test_HandleIndex_RemovesSpooledUploadsOnServiceError(t *testing.T) {
	t.Parallel()
	svc := &fakeService{ingestErr: core.Validationf("collection name must not be empty")}
	s := newTestServer(t, svc, nil)

	// No collectionName: the service rejects the request before the PDF
	// normalizer ever sees the spooled files.
	body, ctype := multipartBody(t, nil,
		map[string][]byte{"a.pdf": []byte("%PDF-1.4 fake")})

	req := httptest.NewRequest(http.MethodPost, "/index", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.ingestReq == nil || len(svc.ingestReq.PDFPaths) != 1 {
		t.Fatalf("want 1 spooled path handed to the service, got %+v", svc.ingestReq)
	}
	for _, p := range svc.ingestReq.PDFPaths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("spooled upload %s survived the failed request (stat err: %v)", p, err)
		}
	}
}

func Test_HandleIndex_RejectsNonPDF(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeService{}, nil)

	body, ctype := multipartBody(t, map[string]string{"collectionName": "docs"},
		map[string][]byte{"notes.txt": []byte("plain text")})

	req := httptest.NewRequest(http.MethodPost, "/index", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want 400 for non-PDF upload, got %d", rec.Code)
	}
}

func Test_HandleIndex_RejectsTooManyFiles(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeService{}, nil)

	files := map[string][]byte{}
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"} {
		files[name] = []byte("x")
	}
	body, ctype := multipartBody(t, map[string]string{"collectionName": "docs"}, files)

	req := httptest.NewRequest(http.MethodPost, "/index", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want 400 for >3 files, got %d", rec.Code)
	}
}

func Test_HandleQuery_Success(t *testing.T) {
	t.Parallel()
	svc := &fakeService{queryAnswer: "the sky is blue"}
	s := newTestServer(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"collectionName":"docs","query":"what color is the sky?"}`))
	rec := do(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res queryResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Response != "the sky is blue" {
		t.Errorf("want answer in response field, got %q", res.Response)
	}
}

func Test_ErrorKindToStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"validation", core.Validationf("query is required"), http.StatusBadRequest, "validation"},
		{"not found", core.NotFoundf("collection %q does not exist", "x"), http.StatusNotFound, "not_found"},
		{"upstream", core.Upstreamf(errors.New("boom"), "completion failed"), http.StatusBadGateway, "upstream"},
		{"unknown", errors.New("plain"), http.StatusInternalServerError, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, &fakeService{queryErr: tt.err}, nil)

			req := httptest.NewRequest(http.MethodPost, "/query",
				strings.NewReader(`{"collectionName":"x","query":"q"}`))
			rec := do(s, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("want %d, got %d", tt.wantStatus, rec.Code)
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Kind != tt.wantKind {
				t.Errorf("want kind %q, got %q", tt.wantKind, body.Error.Kind)
			}
			if body.Error.Message == "" {
				t.Error("error message must not be empty")
			}
		})
	}
}

func Test_HandleGetCollections_EmptyIsArray(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeService{}, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/get-collections", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"collections":[]`) {
		t.Errorf("empty list must serialize as [], got %s", rec.Body.String())
	}
}

func Test_HandleGetMessages(t *testing.T) {
	t.Parallel()
	svc := &fakeService{transcript: []convo.Turn{
		{Role: convo.RoleUser, Content: "q"},
		{Role: convo.RoleAssistant, Content: "a"},
	}}
	s := newTestServer(t, svc, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/get-messages?collectionName=docs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var res messagesResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Messages) != 2 || res.Messages[0].Role != convo.RoleUser {
		t.Errorf("unexpected messages: %+v", res.Messages)
	}
}

func Test_HandleClearMessages(t *testing.T) {
	t.Parallel()
	svc := &fakeService{}
	s := newTestServer(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/clear-messages",
		strings.NewReader(`{"collectionName":"docs"}`))
	rec := do(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if len(svc.cleared) != 1 || svc.cleared[0] != "docs" {
		t.Errorf("clear not forwarded: %v", svc.cleared)
	}
}

func Test_HandleDeleteCollection(t *testing.T) {
	t.Parallel()
	svc := &fakeService{}
	s := newTestServer(t, svc, nil)

	req := httptest.NewRequest(http.MethodDelete, "/delete-collection",
		strings.NewReader(`{"collectionName":"docs"}`))
	rec := do(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "docs" {
		t.Errorf("delete not forwarded: %v", svc.deleted)
	}
}

func Test_HandleHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeService{}, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("want 200, got %d", rec.Code)
	}
}

// failingPinger always reports unreachable.
type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("unreachable") }
func (failingPinger) Name() string                   { return "qdrant" }

func Test_HandleReady_FailingDependency(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeService{}, &Config{Pingers: []Pinger{failingPinger{}}})

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
	var res readyResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Ready || len(res.Checks) != 1 || res.Checks[0].OK {
		t.Errorf("unexpected readiness: %+v", res)
	}
}

func Test_Metrics_Exposed(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeService{queryAnswer: "a"}, nil)

	// Drive one query so counters move.
	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"collectionName":"docs","query":"q"}`))
	do(s, req)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docuchat_query_requests_total") {
		t.Error("query counter missing from /metrics output")
	}
}
