package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/MikeSquared-Agency/winnow/internal/config"
)

// LoadError means the input was malformed beyond the tolerable ratio.
type LoadError struct {
	Path    string
	Parsed  int
	Total   int
	Failure string
}

func (e *LoadError) Error() string {
	if e.Failure != "" {
		return fmt.Sprintf("load %s: %s", e.Path, e.Failure)
	}
	return fmt.Sprintf("load %s: only %d of %d lines parsed", e.Path, e.Parsed, e.Total)
}

// envelope mirrors the JSONL wire format: one object per line with a uuid,
// an optional parentUuid, a type tag, a timestamp and a nested message.
type envelope struct {
	Type       string      `json:"type"`
	UUID       string      `json:"uuid"`
	ParentUUID *string     `json:"parentUuid"`
	Timestamp  string      `json:"timestamp"`
	Message    *envMessage `json:"message,omitempty"`
}

type envMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Loader parses transcripts line by line. Each line is decoded independently;
// a bad line becomes a LoadReport failure entry, never an abort, as long as
// the overall parse ratio stays above rules.MinParseRatio.
type Loader struct {
	rules config.Rules
}

func NewLoader(rules config.Rules) *Loader {
	return &Loader{rules: rules}
}

// LoadFile reads and parses a transcript from disk.
func (l *Loader) LoadFile(path string) ([]*Record, *LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	recs, report, err := l.Load(f)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, report, err
	}
	return recs, report, nil
}

// Load parses a transcript stream.
func (l *Loader) Load(r io.Reader) ([]*Record, *LoadReport, error) {
	report := &LoadReport{}
	var records []*Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB line buffer
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		report.TotalLines++

		rec, err := ParseLine(line, len(records))
		if err != nil {
			report.Failures = append(report.Failures, ParseFailure{Line: lineNo, Reason: err.Error()})
			continue
		}
		report.Parsed++
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, report, fmt.Errorf("scan: %w", err)
	}

	if report.TotalLines > 0 && report.Parsed == 0 {
		return nil, report, &LoadError{Parsed: 0, Total: report.TotalLines, Failure: "no line parsed"}
	}
	if report.TotalLines > 0 && float64(report.Parsed)/float64(report.TotalLines) < l.rules.MinParseRatio {
		return nil, report, &LoadError{Parsed: report.Parsed, Total: report.TotalLines}
	}
	return records, report, nil
}

// ParseLine decodes one transcript line into a record. seq is the position
// the record will occupy among successfully parsed records.
func ParseLine(line []byte, seq int) (*Record, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if env.UUID == "" {
		return nil, fmt.Errorf("missing uuid")
	}
	if env.Type == "" {
		return nil, fmt.Errorf("missing type")
	}

	rec := &Record{
		ID:   env.UUID,
		Type: env.Type,
		Seq:  seq,
		Raw:  append([]byte(nil), line...),
	}
	if env.ParentUUID != nil {
		rec.ParentID = *env.ParentUUID
	}
	if env.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
		if err == nil {
			rec.Timestamp = ts
		}
	}

	rec.Body, rec.Variant = extractContent(line, env.Type)
	if rec.Variant == VariantToolResult {
		rec.Type = "tool-result"
	}
	return rec, nil
}

// editTools are tool names treated as code-modification evidence.
var editTools = map[string]bool{
	"edit": true, "write": true, "multiedit": true, "notebookedit": true, "create": true,
}

// extractContent pulls the text body out of message.content and tags the
// variant. Content is either a plain string or an array of typed blocks;
// gjson reads the blocks without disturbing the rest of the line, which stays
// byte-identical in Raw.
func extractContent(line []byte, typ string) (string, Variant) {
	if typ == "system" || typ == "summary" || typ == "progress" {
		body := gjson.GetBytes(line, "content").String()
		if body == "" {
			body = gjson.GetBytes(line, "message.content").String()
		}
		return body, VariantSystemNotice
	}

	content := gjson.GetBytes(line, "message.content")
	if !content.Exists() {
		return "", VariantPlainText
	}
	if content.Type == gjson.String {
		return content.String(), VariantPlainText
	}
	if !content.IsArray() {
		return content.Raw, VariantPlainText
	}

	variant := VariantPlainText
	var parts []string
	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			if t := block.Get("text").String(); t != "" {
				parts = append(parts, t)
			}
		case "tool_use":
			name := strings.ToLower(block.Get("name").String())
			if editTools[name] {
				variant = VariantCodeEdit
			}
			if fp := block.Get("input.file_path").String(); fp != "" {
				parts = append(parts, name+" "+fp)
			} else if cmd := block.Get("input.command").String(); cmd != "" {
				parts = append(parts, name+" "+cmd)
			}
		case "tool_result":
			variant = VariantToolResult
			parts = append(parts, toolResultText(block)...)
		case "thinking":
			// dropped from the body; thinking carries no retention signal
		}
		return true
	})
	return strings.Join(parts, "\n"), variant
}

func toolResultText(block gjson.Result) []string {
	content := block.Get("content")
	if content.Type == gjson.String {
		if s := content.String(); s != "" {
			return []string{s}
		}
		return nil
	}
	var parts []string
	content.ForEach(func(_, inner gjson.Result) bool {
		if inner.Get("type").String() == "text" {
			if t := inner.Get("text").String(); t != "" {
				parts = append(parts, t)
			}
		}
		return true
	})
	return parts
}
