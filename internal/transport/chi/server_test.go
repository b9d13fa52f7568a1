package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/minuted/minuted/internal/domain"
	"github.com/minuted/minuted/internal/prompt"
	"github.com/minuted/minuted/internal/usecase/ingest"
	transcriptuc "github.com/minuted/minuted/internal/usecase/transcript"
)

type stubIngester struct {
	err error
}

func (s *stubIngester) Ingest(_ context.Context, _, _, _ string) (ingest.Result, error) {
	return ingest.Result{Status: ingest.StatusProcessed, Chunks: 2}, s.err
}

type stubAnchor struct {
	data map[string]map[string]string
}

func (s *stubAnchor) Get(_ context.Context, ns string) map[string]string {
	out := map[string]string{}
	for k, v := range s.data[ns] {
		out[k] = v
	}
	return out
}

func (s *stubAnchor) Put(_ context.Context, ns string, artifacts map[string]string) error {
	s.data[ns] = artifacts
	return nil
}

type stubAssembler struct {
	context string
	err     error
}

func (s *stubAssembler) Assemble(_ context.Context, _, _ string) (string, error) {
	return s.context, s.err
}

type stubGenerator struct {
	answer string
	err    error
}

func (s *stubGenerator) Generate(_ context.Context, _ string, _ map[string]string) (string, error) {
	return s.answer, s.err
}

type stubPrompts struct {
	defs map[string]prompt.Definition
}

func (s *stubPrompts) Get(name string) (prompt.Definition, bool) {
	def, ok := s.defs[name]
	return def, ok
}

func (s *stubPrompts) Names() []string {
	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	return names
}

type stubIndex struct {
	namespaces []string
	deleted    []string
}

func (s *stubIndex) Namespaces(_ context.Context) ([]string, error) {
	return s.namespaces, nil
}

func (s *stubIndex) Delete(_ context.Context, ns string) error {
	s.deleted = append(s.deleted, ns)
	return nil
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error {
	return s.err
}

type serverFixture struct {
	router    chirouter.Router
	ingester  *stubIngester
	anchor    *stubAnchor
	assembler *stubAssembler
	generator *stubGenerator
	prompts   *stubPrompts
	index     *stubIndex
	pinger    *stubPinger
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		ingester:  &stubIngester{},
		anchor:    &stubAnchor{data: map[string]map[string]string{}},
		assembler: &stubAssembler{context: "retrieved context"},
		generator: &stubGenerator{answer: "generated answer"},
		prompts: &stubPrompts{defs: map[string]prompt.Definition{
			"qa_prompt": {
				Template:       "Context: {transcript}\nQ: {question}",
				InputVariables: []string{"transcript", "question"},
			},
		}},
		index:  &stubIndex{},
		pinger: &stubPinger{},
	}

	svc := transcriptuc.NewService(
		f.ingester, f.anchor, f.assembler, f.generator, f.prompts, f.index, zap.NewNop())
	server := NewServer(svc, f.pinger, zap.NewNop())

	f.router = chirouter.NewRouter()
	server.RegisterRoutes(f.router)
	return f
}

func doJSON(t *testing.T, router chirouter.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestProcessTranscript(t *testing.T) {
	f := newServerFixture()

	rr := doJSON(t, f.router, "POST", "/process-transcript", map[string]string{
		"transcript": "we met and talked",
		"namespace":  "ns1",
		"filename":   "meeting.txt",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["status"] != "processed" {
		t.Errorf("status = %v", body["status"])
	}
	if body["namespace"] != "ns1" || body["filename"] != "meeting.txt" {
		t.Errorf("unexpected body: %v", body)
	}
	if body["uploaded_at"] == "" {
		t.Error("expected uploaded_at")
	}
}

func TestProcessTranscript_MissingFields(t *testing.T) {
	f := newServerFixture()

	rr := doJSON(t, f.router, "POST", "/process-transcript", map[string]string{
		"transcript": "text only",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != codeValidationFailed {
		t.Errorf("code = %v", body["code"])
	}
}

func TestProcessTranscript_NamespaceCheckFailure(t *testing.T) {
	f := newServerFixture()
	f.ingester.err = domain.ErrNamespaceCheck

	rr := doJSON(t, f.router, "POST", "/process-transcript", map[string]string{
		"transcript": "text",
		"namespace":  "ns1",
	})

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != codeNamespaceCheckFailed {
		t.Errorf("code = %v", body["code"])
	}
}

func TestQuery(t *testing.T) {
	f := newServerFixture()

	rr := doJSON(t, f.router, "POST", "/query", map[string]string{
		"query":     "what was decided?",
		"namespace": "ns1",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["response"] != "generated answer" {
		t.Errorf("response = %v", body["response"])
	}
	if body["matches"] != "retrieved context" {
		t.Errorf("matches = %v", body["matches"])
	}
}

func TestQuery_NoContext(t *testing.T) {
	f := newServerFixture()
	f.assembler.context = ""

	rr := doJSON(t, f.router, "POST", "/query", map[string]string{
		"query":     "anything?",
		"namespace": "empty-ns",
	})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != codeNoContextFound {
		t.Errorf("code = %v", body["code"])
	}
}

func TestProcessWithPrompt(t *testing.T) {
	f := newServerFixture()

	rr := doJSON(t, f.router, "POST", "/process-with-prompt", map[string]string{
		"transcript_text": "the transcript",
		"prompt_name":     "qa_prompt",
		"namespace":       "ns1",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["response"] != "generated answer" {
		t.Errorf("response = %v", body["response"])
	}
	if body["used_context"] != "retrieved context" {
		t.Errorf("used_context = %v", body["used_context"])
	}
}

func TestProcessWithPrompt_CachedAnswer(t *testing.T) {
	f := newServerFixture()
	f.anchor.data["ns1"] = map[string]string{"qa_prompt": "cached answer"}

	rr := doJSON(t, f.router, "POST", "/process-with-prompt", map[string]string{
		"transcript_text": "the transcript",
		"prompt_name":     "qa_prompt",
		"namespace":       "ns1",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["response"] != "cached answer" {
		t.Errorf("response = %v", body["response"])
	}
	if body["used_context"] != "[CACHED]" {
		t.Errorf("used_context = %v", body["used_context"])
	}
}

func TestProcessWithPrompt_UnknownPrompt(t *testing.T) {
	f := newServerFixture()

	rr := doJSON(t, f.router, "POST", "/process-with-prompt", map[string]string{
		"transcript_text": "the transcript",
		"prompt_name":     "nope",
		"namespace":       "ns1",
	})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != codePromptNotFound {
		t.Errorf("code = %v", body["code"])
	}
}

func TestProcessWithPrompt_MissingVariable(t *testing.T) {
	f := newServerFixture()
	f.generator.err = domain.NewMissingVariable("question")

	rr := doJSON(t, f.router, "POST", "/process-with-prompt", map[string]string{
		"transcript_text": "the transcript",
		"prompt_name":     "qa_prompt",
		"namespace":       "ns1",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != codeMissingVariable {
		t.Errorf("code = %v", body["code"])
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "question") {
		t.Errorf("message should name the variable: %v", body["message"])
	}
}

func TestUploadTranscript(t *testing.T) {
	f := newServerFixture()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "meeting.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("transcript body")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/upload-transcript", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["transcript_text"] != "transcript body" {
		t.Errorf("transcript_text = %v", body["transcript_text"])
	}
	if body["filename"] != "meeting.txt" {
		t.Errorf("filename = %v", body["filename"])
	}
	ns, _ := body["namespace"].(string)
	if len(ns) != 64 {
		t.Errorf("expected sha256 hex namespace, got %q", ns)
	}
}

func TestUploadTranscript_RejectsNonTxt(t *testing.T) {
	f := newServerFixture()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "meeting.docx")
	fw.Write([]byte("binary"))
	mw.Close()

	req := httptest.NewRequest("POST", "/upload-transcript", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rr.Code)
	}
}

func TestListUploads(t *testing.T) {
	f := newServerFixture()
	f.index.namespaces = []string{"ns1"}
	f.anchor.data["ns1"] = map[string]string{
		domain.MetaFilename:  "meeting.txt",
		domain.MetaTimestamp: "2026-01-02T03:04:05Z",
	}

	rr := doJSON(t, f.router, "GET", "/list-uploads", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	uploads, _ := body["uploads"].([]any)
	if len(uploads) != 1 {
		t.Fatalf("expected 1 upload, got %v", body)
	}
	first, _ := uploads[0].(map[string]any)
	if first["filename"] != "meeting.txt" {
		t.Errorf("unexpected upload: %v", first)
	}
}

func TestListPrompts(t *testing.T) {
	f := newServerFixture()

	rr := doJSON(t, f.router, "GET", "/prompts", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var names []string
	if err := json.NewDecoder(rr.Body).Decode(&names); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(names) != 1 || names[0] != "qa_prompt" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestDeleteNamespace(t *testing.T) {
	f := newServerFixture()

	rr := doJSON(t, f.router, "DELETE", "/delete-namespace/ns1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if len(f.index.deleted) != 1 || f.index.deleted[0] != "ns1" {
		t.Errorf("unexpected deletes: %v", f.index.deleted)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newServerFixture()

	rr := doJSON(t, f.router, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	f := newServerFixture()
	f.pinger.err = domain.ErrNotFound

	rr := doJSON(t, f.router, "GET", "/health", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != "degraded" {
		t.Errorf("status = %v", body["status"])
	}
}
