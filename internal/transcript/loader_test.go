package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/winnow/internal/config"
)

func load(t *testing.T, lines ...string) ([]*Record, *LoadReport, error) {
	t.Helper()
	l := NewLoader(config.DefaultRules())
	return l.Load(strings.NewReader(strings.Join(lines, "\n")))
}

func TestLoad_BasicConversation(t *testing.T) {
	recs, report, err := load(t,
		`{"type":"user","uuid":"aaa","parentUuid":null,"timestamp":"2026-03-02T10:00:00Z","message":{"role":"user","content":"Hello, fix the login bug"}}`,
		`{"type":"assistant","uuid":"bbb","parentUuid":"aaa","timestamp":"2026-03-02T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Looking at it now."}]}}`,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if report.Parsed != 2 || len(report.Failures) != 0 {
		t.Errorf("report = %+v", report)
	}

	if recs[0].ID != "aaa" || recs[0].ParentID != "" || recs[0].Type != "user" {
		t.Errorf("rec[0] = %+v", recs[0])
	}
	if recs[0].Body != "Hello, fix the login bug" {
		t.Errorf("rec[0] body = %q", recs[0].Body)
	}
	if recs[1].ParentID != "aaa" || recs[1].Body != "Looking at it now." {
		t.Errorf("rec[1] = %+v", recs[1])
	}
	if recs[1].Seq != 1 {
		t.Errorf("rec[1] seq = %d, want 1", recs[1].Seq)
	}
	if recs[0].Timestamp.IsZero() {
		t.Error("timestamp not parsed")
	}
}

func TestLoad_MalformedLineSkipped(t *testing.T) {
	recs, report, err := load(t,
		`{"type":"user","uuid":"aaa","parentUuid":null,"message":{"role":"user","content":"first"}}`,
		`{not json at all`,
		`{"type":"user","uuid":"bbb","parentUuid":"aaa","message":{"role":"user","content":"second"}}`,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if len(report.Failures) != 1 || report.Failures[0].Line != 2 {
		t.Errorf("failures = %+v", report.Failures)
	}
	// Sequence indexes stay contiguous over parsed records.
	if recs[1].Seq != 1 {
		t.Errorf("seq after skipped line = %d, want 1", recs[1].Seq)
	}
}

func TestLoad_MissingUUIDIsFailure(t *testing.T) {
	_, report, err := load(t,
		`{"type":"user","message":{"role":"user","content":"no id"}}`,
		`{"type":"user","uuid":"aaa","message":{"role":"user","content":"ok"}}`,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", report.Failures)
	}
}

func TestLoad_NothingParses(t *testing.T) {
	_, _, err := load(t, `garbage`, `more garbage`)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestLoad_BelowParseRatio(t *testing.T) {
	_, _, err := load(t,
		`{"type":"user","uuid":"aaa","message":{"role":"user","content":"ok"}}`,
		`bad`,
		`worse`,
	)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError below parse ratio, got %v", err)
	}
	if le.Parsed != 1 || le.Total != 3 {
		t.Errorf("LoadError = %+v", le)
	}
}

func TestLoadFile_SetsPathOnLoadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonl")
	if err := os.WriteFile(path, []byte("garbage\nmore garbage\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := NewLoader(config.DefaultRules()).LoadFile(path)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if le.Path != path {
		t.Errorf("path = %q, want %q", le.Path, path)
	}
}

func TestParseLine_ToolResultVariant(t *testing.T) {
	line := `{"type":"user","uuid":"ccc","parentUuid":"bbb","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"file1\nfile2"}]}}`
	rec, err := ParseLine([]byte(line), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Variant != VariantToolResult {
		t.Errorf("variant = %v, want tool-result", rec.Variant)
	}
	if rec.Type != "tool-result" {
		t.Errorf("type = %q, want tool-result", rec.Type)
	}
	if rec.Body != "file1\nfile2" {
		t.Errorf("body = %q", rec.Body)
	}
}

func TestParseLine_CodeEditVariant(t *testing.T) {
	line := `{"type":"assistant","uuid":"ddd","parentUuid":"ccc","message":{"role":"assistant","content":[{"type":"tool_use","id":"t2","name":"Edit","input":{"file_path":"internal/auth/login.go","old_string":"a","new_string":"b"}}]}}`
	rec, err := ParseLine([]byte(line), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Variant != VariantCodeEdit {
		t.Errorf("variant = %v, want code-edit", rec.Variant)
	}
	if !strings.Contains(rec.Body, "internal/auth/login.go") {
		t.Errorf("body = %q, want file path included", rec.Body)
	}
}

func TestParseLine_SystemNotice(t *testing.T) {
	line := `{"type":"system","uuid":"eee","parentUuid":"ddd","content":"Stop hook feedback: operation complete"}`
	rec, err := ParseLine([]byte(line), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Variant != VariantSystemNotice {
		t.Errorf("variant = %v, want system-notice", rec.Variant)
	}
	if rec.Body != "Stop hook feedback: operation complete" {
		t.Errorf("body = %q", rec.Body)
	}
}

func TestParseLine_ThinkingBlocksDropped(t *testing.T) {
	line := `{"type":"assistant","uuid":"fff","message":{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"Answer."}]}}`
	rec, err := ParseLine([]byte(line), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body != "Answer." {
		t.Errorf("body = %q, want thinking dropped", rec.Body)
	}
}

func TestLoad_EmptyLinesIgnored(t *testing.T) {
	recs, report, err := load(t,
		`{"type":"user","uuid":"aaa","message":{"role":"user","content":"hi"}}`,
		``,
		`   `,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || report.TotalLines != 1 {
		t.Errorf("recs = %d, total = %d", len(recs), report.TotalLines)
	}
}
