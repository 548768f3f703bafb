package compress

import (
	"fmt"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/winnow/internal/config"
	"github.com/MikeSquared-Agency/winnow/internal/score"
)

// testRules shrinks the size windows so fixtures stay readable.
func testRules() config.Rules {
	rules := config.DefaultRules()
	rules.CompressMinBytes = 120
	rules.HeadLines = 2
	rules.TailLines = 1
	return rules
}

func newCompressor(t *testing.T, rules config.Rules) *Compressor {
	t.Helper()
	s, err := score.New(rules)
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	c, err := NewCompressor(rules, s.KeepPatterns())
	if err != nil {
		t.Fatalf("new compressor: %v", err)
	}
	return c
}

func TestCompress_SmallBodyUntouched(t *testing.T) {
	c := newCompressor(t, testRules())
	body := "short body\nno boilerplate"
	out, changed := c.Compress(body, nil)
	if changed || out != body {
		t.Errorf("small body changed: %q", out)
	}
}

func TestCompress_TruncatesInterior(t *testing.T) {
	c := newCompressor(t, testRules())
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("log line %02d with some padding text", i))
	}
	body := strings.Join(lines, "\n")

	out, changed := c.Compress(body, nil)
	if !changed {
		t.Fatal("oversized body not compressed")
	}
	got := strings.Split(out, "\n")
	// Head 2, one elision marker, tail 1.
	if len(got) != 4 {
		t.Fatalf("output lines = %d: %q", len(got), out)
	}
	if got[0] != lines[0] || got[1] != lines[1] || got[3] != lines[19] {
		t.Errorf("head/tail not verbatim: %q", got)
	}
	if !strings.HasPrefix(got[2], "[elided 17 lines, ") {
		t.Errorf("marker = %q", got[2])
	}
	if len(out) >= len(body) {
		t.Errorf("no size reduction: %d vs %d", len(out), len(body))
	}
}

func TestCompress_ErrorLinesSurviveInterior(t *testing.T) {
	c := newCompressor(t, testRules())
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("routine output %02d padding padding", i))
	}
	lines[10] = "panic: runtime error: index out of range"
	body := strings.Join(lines, "\n")

	out, _ := c.Compress(body, nil)
	if !strings.Contains(out, "panic: runtime error: index out of range") {
		t.Errorf("error line elided:\n%s", out)
	}
	// The elision splits around the preserved line.
	if strings.Count(out, "[elided") != 2 {
		t.Errorf("expected two markers around the error line:\n%s", out)
	}
}

func TestCompress_KeepTokensSurviveInterior(t *testing.T) {
	c := newCompressor(t, testRules())
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("chatter %02d chatter chatter chatter", i))
	}
	lines[8] = "the identifier parser_state holds the cursor"
	body := strings.Join(lines, "\n")

	out, _ := c.Compress(body, []string{"parser_state"})
	if !strings.Contains(out, "parser_state holds the cursor") {
		t.Errorf("referenced line elided:\n%s", out)
	}
}

func TestCompress_ScoringEvidenceSurvivesInterior(t *testing.T) {
	c := newCompressor(t, testRules())
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("chatter %02d chatter chatter chatter", i))
	}
	lines[6] = "Why does the scheduler stall under load?"
	lines[12] = "We should use a worker pool instead of spawning per request"
	body := strings.Join(lines, "\n")

	out, _ := c.Compress(body, nil)
	// Question and decision lines carry scoring weight; eliding them would
	// lower the record's score on a second pruning run.
	if !strings.Contains(out, "Why does the scheduler stall under load?") {
		t.Errorf("question line elided:\n%s", out)
	}
	if !strings.Contains(out, "We should use a worker pool") {
		t.Errorf("decision line elided:\n%s", out)
	}
}

func TestCompress_RedactsBoilerplateAtAnySize(t *testing.T) {
	c := newCompressor(t, testRules())
	body := "useful line\nHook completed in 300ms\nanother useful line"
	out, changed := c.Compress(body, nil)
	if !changed {
		t.Fatal("boilerplate not redacted")
	}
	if strings.Contains(out, "Hook completed") {
		t.Errorf("boilerplate kept: %q", out)
	}
	if !strings.Contains(out, "useful line") || !strings.Contains(out, "another useful line") {
		t.Errorf("useful content lost: %q", out)
	}
}

func TestCompress_AllBoilerplateLeavesMarker(t *testing.T) {
	c := newCompressor(t, testRules())
	out, changed := c.Compress("Hook completed in 12ms", nil)
	if !changed {
		t.Fatal("expected redaction")
	}
	if !strings.Contains(out, "[redacted 1 boilerplate lines]") {
		t.Errorf("out = %q", out)
	}
}
