package transcript

import "time"

// Variant classifies a record's content for scoring and compression.
type Variant int

const (
	VariantPlainText Variant = iota
	VariantCodeEdit
	VariantToolResult
	VariantSystemNotice
)

func (v Variant) String() string {
	switch v {
	case VariantCodeEdit:
		return "code-edit"
	case VariantToolResult:
		return "tool-result"
	case VariantSystemNotice:
		return "system-notice"
	default:
		return "plain-text"
	}
}

// Record is a single transcript entry. The loader creates records; the graph
// builder and scorer read them; the orchestrator annotates retention and a
// compressed body; the writer serializes them. Nothing mutates a record after
// it leaves the orchestrator.
type Record struct {
	ID        string
	ParentID  string // empty for roots
	Type      string // user, assistant, system, tool-result
	Timestamp time.Time
	Body      string // extracted text content
	Variant   Variant
	Seq       int // original line position among parsed records

	// Raw holds the original line bytes so untouched records round-trip
	// byte-identical. Nil for synthesized placeholder records.
	Raw []byte

	// Annotations set during pruning.
	Score    int
	Retained bool
	Elided   bool
	NewBody  string // compressed body, empty when uncompressed
	// NewParentID is set when the parent was relinked to the nearest
	// surviving ancestor; empty means the original linkage stands.
	NewParentID string
	Relinked    bool
}

// EffectiveParent returns the parent id the record will carry in the output.
func (r *Record) EffectiveParent() string {
	if r.Relinked {
		return r.NewParentID
	}
	return r.ParentID
}

// ParseFailure records one line that could not be decoded.
type ParseFailure struct {
	Line   int // 1-based line number in the input file
	Reason string
}

// LoadReport summarizes a load: totals plus every skipped line.
type LoadReport struct {
	TotalLines int // non-empty lines seen
	Parsed     int
	Failures   []ParseFailure
}
