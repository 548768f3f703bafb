package compress

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/winnow/internal/config"
)

// Compressor truncates oversized record bodies and strips boilerplate. It is
// applied only to retained records; dropped records become placeholders in
// the orchestrator instead.
type Compressor struct {
	rules  config.Rules
	redact []*regexp.Regexp

	// keep marks interior lines that must survive elision verbatim: error
	// traces, and every line carrying scoring evidence (file references, edit
	// verbs, questions, decision language). Eliding scoring evidence would
	// make a second pruning run score the record lower than the first did.
	keep []*regexp.Regexp
}

// NewCompressor compiles the redaction table. keep is the set of patterns
// whose matching lines are never elided; the orchestrator passes the scorer's
// positive-weight patterns here.
func NewCompressor(rules config.Rules, keep []*regexp.Regexp) (*Compressor, error) {
	c := &Compressor{rules: rules, keep: keep}
	for _, src := range rules.RedactPatterns {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", src, err)
		}
		c.redact = append(c.redact, re)
	}
	return c, nil
}

// Compress returns the compressed body and whether anything changed.
// keepTokens are substrings that must survive (the tokens that earned the
// record a reference boost). Boilerplate lines are removed at any size;
// head/tail truncation only kicks in past the size threshold.
func (c *Compressor) Compress(body string, keepTokens []string) (string, bool) {
	lines := strings.Split(body, "\n")

	redacted := lines[:0:0]
	dropped := 0
	for _, line := range lines {
		if c.isBoilerplate(line) {
			dropped++
			continue
		}
		redacted = append(redacted, line)
	}

	if len(strings.Join(redacted, "\n")) <= c.rules.CompressMinBytes {
		if dropped == 0 {
			return body, false
		}
		out := strings.Join(redacted, "\n")
		if strings.TrimSpace(out) == "" {
			out = fmt.Sprintf("[redacted %d boilerplate lines]", dropped)
		}
		return out, true
	}

	head, tail := c.rules.HeadLines, c.rules.TailLines
	if len(redacted) <= head+tail+1 {
		out := strings.Join(redacted, "\n")
		return out, dropped > 0
	}

	out := make([]string, 0, head+tail+8)
	out = append(out, redacted[:head]...)

	elidedLines, elidedBytes := 0, 0
	flush := func() {
		if elidedLines == 0 {
			return
		}
		out = append(out, fmt.Sprintf("[elided %d lines, %d bytes]", elidedLines, elidedBytes))
		elidedLines, elidedBytes = 0, 0
	}
	for _, line := range redacted[head : len(redacted)-tail] {
		if c.mustKeep(line, keepTokens) {
			flush()
			out = append(out, line)
			continue
		}
		elidedLines++
		elidedBytes += len(line) + 1
	}
	flush()

	out = append(out, redacted[len(redacted)-tail:]...)
	return strings.Join(out, "\n"), true
}

func (c *Compressor) isBoilerplate(line string) bool {
	for _, re := range c.redact {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func (c *Compressor) mustKeep(line string, keepTokens []string) bool {
	for _, re := range c.keep {
		if re.MatchString(line) {
			return true
		}
	}
	for _, tok := range keepTokens {
		if strings.Contains(line, tok) {
			return true
		}
	}
	return false
}
