package transcript

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/minuted/minuted/internal/domain"
	"github.com/minuted/minuted/internal/prompt"
	"github.com/minuted/minuted/internal/usecase/ingest"
)

type mockIngester struct {
	result ingest.Result
	err    error
	calls  int
}

func (m *mockIngester) Ingest(_ context.Context, _, _, _ string) (ingest.Result, error) {
	m.calls++
	return m.result, m.err
}

type mockAnchor struct {
	data   map[string]map[string]string
	putErr error
	puts   int
}

func newMockAnchor() *mockAnchor {
	return &mockAnchor{data: map[string]map[string]string{}}
}

func (m *mockAnchor) Get(_ context.Context, ns string) map[string]string {
	out := map[string]string{}
	for k, v := range m.data[ns] {
		out[k] = v
	}
	return out
}

func (m *mockAnchor) Put(_ context.Context, ns string, artifacts map[string]string) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[ns] = artifacts
	return nil
}

type mockAssembler struct {
	context string
	err     error
	calls   int
}

func (m *mockAssembler) Assemble(_ context.Context, _, _ string) (string, error) {
	m.calls++
	return m.context, m.err
}

type mockGenerator struct {
	answers map[string]string
	err     error
	calls   []string
}

func (m *mockGenerator) Generate(_ context.Context, name string, _ map[string]string) (string, error) {
	m.calls = append(m.calls, name)
	if m.err != nil {
		return "", m.err
	}
	return m.answers[name], nil
}

type mockPrompts struct {
	defs map[string]prompt.Definition
}

func (m *mockPrompts) Get(name string) (prompt.Definition, bool) {
	def, ok := m.defs[name]
	return def, ok
}

func (m *mockPrompts) Names() []string {
	names := make([]string, 0, len(m.defs))
	for name := range m.defs {
		names = append(names, name)
	}
	return names
}

type mockIndex struct {
	namespaces []string
	nsErr      error
	deleted    []string
	deleteErr  error
}

func (m *mockIndex) Namespaces(_ context.Context) ([]string, error) {
	return m.namespaces, m.nsErr
}

func (m *mockIndex) Delete(_ context.Context, ns string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, ns)
	return nil
}

type fixture struct {
	svc       *Service
	ingester  *mockIngester
	anchor    *mockAnchor
	assembler *mockAssembler
	generator *mockGenerator
	prompts   *mockPrompts
	index     *mockIndex
}

func newFixture() *fixture {
	f := &fixture{
		ingester:  &mockIngester{result: ingest.Result{Status: ingest.StatusProcessed, Chunks: 3}},
		anchor:    newMockAnchor(),
		assembler: &mockAssembler{context: "retrieved context"},
		generator: &mockGenerator{answers: map[string]string{
			summaryPrompt:     "the summary",
			taskPrompt:        "the tasks",
			structuringPrompt: `{"tasks": []}`,
			queryPrompt:       "the answer",
		}},
		prompts: &mockPrompts{defs: map[string]prompt.Definition{
			"translation_prompt": {
				Template:       "Translate to {language}: {transcript}",
				InputVariables: []string{"transcript", "language"},
			},
			"qa_prompt": {
				Template:       "Context: {transcript}\nQ: {question}",
				InputVariables: []string{"transcript", "question"},
			},
		}},
		index: &mockIndex{},
	}
	f.svc = NewService(f.ingester, f.anchor, f.assembler, f.generator, f.prompts, f.index, zap.NewNop())
	return f
}

func TestProcess_GeneratesAllArtifacts(t *testing.T) {
	f := newFixture()

	result, err := f.svc.Process(context.Background(), "ns1", "transcript text", "meeting.txt")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Status != StatusProcessed {
		t.Errorf("status = %q", result.Status)
	}
	if result.Namespace != "ns1" || result.Filename != "meeting.txt" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.UploadedAt == "" {
		t.Error("expected upload timestamp")
	}

	if len(f.generator.calls) != 3 {
		t.Fatalf("expected 3 generations, got %v", f.generator.calls)
	}

	stored := f.anchor.data["ns1"]
	if stored[domain.ArtifactSummary] != "the summary" {
		t.Errorf("summary = %q", stored[domain.ArtifactSummary])
	}
	if stored[domain.ArtifactTasks] != "the tasks" {
		t.Errorf("tasks = %q", stored[domain.ArtifactTasks])
	}
	if stored[domain.ArtifactStructured] != `{"tasks": []}` {
		t.Errorf("structured = %q", stored[domain.ArtifactStructured])
	}
	if stored[domain.MetaFilename] != "meeting.txt" {
		t.Errorf("filename = %q", stored[domain.MetaFilename])
	}
	if stored[domain.MetaTimestamp] == "" {
		t.Error("expected timestamp in anchor")
	}
}

func TestProcess_FullCacheSkipsGeneration(t *testing.T) {
	f := newFixture()
	f.anchor.data["ns1"] = map[string]string{
		domain.ArtifactSummary:    "cached summary",
		domain.ArtifactTasks:      "cached tasks",
		domain.ArtifactStructured: "cached structured",
	}

	result, err := f.svc.Process(context.Background(), "ns1", "transcript text", "meeting.txt")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Status != StatusCached {
		t.Errorf("status = %q", result.Status)
	}
	if len(f.generator.calls) != 0 {
		t.Errorf("expected zero completions, got %v", f.generator.calls)
	}
	if f.assembler.calls != 0 {
		t.Errorf("expected zero retrievals, got %d", f.assembler.calls)
	}
	if f.anchor.puts != 0 {
		t.Errorf("expected no anchor write, got %d", f.anchor.puts)
	}
}

func TestProcess_PartialCacheGeneratesOnlyMissing(t *testing.T) {
	f := newFixture()
	f.anchor.data["ns1"] = map[string]string{
		domain.ArtifactSummary: "cached summary",
	}

	if _, err := f.svc.Process(context.Background(), "ns1", "text", "f.txt"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(f.generator.calls) != 2 {
		t.Fatalf("expected 2 generations, got %v", f.generator.calls)
	}
	for _, name := range f.generator.calls {
		if name == summaryPrompt {
			t.Error("summary regenerated despite being cached")
		}
	}
	if f.anchor.data["ns1"][domain.ArtifactSummary] != "cached summary" {
		t.Error("cached summary lost on merge")
	}
}

func TestProcess_GenerationFailurePropagates(t *testing.T) {
	f := newFixture()
	f.generator.err = domain.ErrCompletionProvider

	_, err := f.svc.Process(context.Background(), "ns1", "text", "f.txt")
	if !errors.Is(err, domain.ErrCompletionProvider) {
		t.Fatalf("expected ErrCompletionProvider, got %v", err)
	}
	if f.anchor.puts != 0 {
		t.Error("failed generation must not be cached")
	}
}

func TestProcess_AnchorWriteFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.anchor.putErr = errors.New("write failed")

	result, err := f.svc.Process(context.Background(), "ns1", "text", "f.txt")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Status != StatusProcessed {
		t.Errorf("status = %q", result.Status)
	}
}

func TestProcess_IngestErrorPropagates(t *testing.T) {
	f := newFixture()
	f.ingester.err = domain.ErrNamespaceCheck

	_, err := f.svc.Process(context.Background(), "ns1", "text", "f.txt")
	if !errors.Is(err, domain.ErrNamespaceCheck) {
		t.Fatalf("expected ErrNamespaceCheck, got %v", err)
	}
}

func TestRunPrompt_ThenCached(t *testing.T) {
	f := newFixture()
	f.generator.answers["translation_prompt"] = "die Zusammenfassung"
	ctx := context.Background()

	first, err := f.svc.RunPrompt(ctx, "ns1", "transcript text", "translation_prompt")
	if err != nil {
		t.Fatalf("RunPrompt failed: %v", err)
	}
	if first.Cached {
		t.Error("first run must not be cached")
	}
	if first.Answer != "die Zusammenfassung" {
		t.Errorf("answer = %q", first.Answer)
	}
	if first.Context != "retrieved context" {
		t.Errorf("context = %q", first.Context)
	}

	second, err := f.svc.RunPrompt(ctx, "ns1", "transcript text", "translation_prompt")
	if err != nil {
		t.Fatalf("RunPrompt failed: %v", err)
	}
	if !second.Cached {
		t.Error("second run must be cached")
	}
	if second.Context != CachedContext {
		t.Errorf("context = %q, expected %q", second.Context, CachedContext)
	}
	if second.Answer != "die Zusammenfassung" {
		t.Errorf("answer = %q", second.Answer)
	}
	if len(f.generator.calls) != 1 {
		t.Errorf("cached run must not call the generator: %v", f.generator.calls)
	}
	if f.assembler.calls != 1 {
		t.Errorf("cached run must not retrieve: %d calls", f.assembler.calls)
	}
}

func TestRunPrompt_EmptyContext(t *testing.T) {
	f := newFixture()
	f.assembler.context = ""

	_, err := f.svc.RunPrompt(context.Background(), "empty-ns", "text", "qa_prompt")
	if !errors.Is(err, domain.ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}
}

func TestRunPrompt_UnknownPrompt(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RunPrompt(context.Background(), "ns1", "text", "nope")
	if !errors.Is(err, domain.ErrPromptNotFound) {
		t.Fatalf("expected ErrPromptNotFound, got %v", err)
	}
}

func TestQuery(t *testing.T) {
	f := newFixture()

	result, err := f.svc.Query(context.Background(), "ns1", "what was decided?")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if result.Answer != "the answer" {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.Context != "retrieved context" {
		t.Errorf("context = %q", result.Context)
	}
	if len(f.generator.calls) != 1 || f.generator.calls[0] != queryPrompt {
		t.Errorf("unexpected generator calls: %v", f.generator.calls)
	}
}

func TestQuery_EmptyContext(t *testing.T) {
	f := newFixture()
	f.assembler.context = ""

	_, err := f.svc.Query(context.Background(), "ns1", "q")
	if !errors.Is(err, domain.ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}
}

func TestQuery_NeverCaches(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Query(ctx, "ns1", "q"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if _, err := f.svc.Query(ctx, "ns1", "q"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(f.generator.calls) != 2 {
		t.Errorf("expected 2 generations, got %v", f.generator.calls)
	}
	if f.anchor.puts != 0 {
		t.Errorf("query must not write the anchor, got %d puts", f.anchor.puts)
	}
}

func TestListUploads(t *testing.T) {
	f := newFixture()
	f.index.namespaces = []string{"ns1", "ns2"}
	f.anchor.data["ns1"] = map[string]string{
		domain.MetaFilename:  "meeting.txt",
		domain.MetaTimestamp: "2026-01-02T03:04:05Z",
	}

	uploads, err := f.svc.ListUploads(context.Background())
	if err != nil {
		t.Fatalf("ListUploads failed: %v", err)
	}
	if len(uploads) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(uploads))
	}
	if uploads[0].Filename != "meeting.txt" || uploads[0].UploadedAt != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected upload: %+v", uploads[0])
	}
	if uploads[1].Filename != "N/A" || uploads[1].UploadedAt != "N/A" {
		t.Errorf("expected N/A fallbacks, got %+v", uploads[1])
	}
}

func TestDeleteNamespace(t *testing.T) {
	f := newFixture()

	if err := f.svc.DeleteNamespace(context.Background(), "ns1"); err != nil {
		t.Fatalf("DeleteNamespace failed: %v", err)
	}
	if len(f.index.deleted) != 1 || f.index.deleted[0] != "ns1" {
		t.Errorf("unexpected deletes: %v", f.index.deleted)
	}
}
