package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/tidwall/sjson"
)

// Write serializes records one per line in original sequence order. Untouched
// records are emitted byte-identical to their input lines; compressed or
// relinked records have only the affected fields rewritten; elided
// placeholders are synthesized as system records.
func Write(w io.Writer, recs []*Record) error {
	ordered := make([]*Record, len(recs))
	copy(ordered, recs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	bw := bufio.NewWriter(w)
	for _, rec := range ordered {
		line, err := Serialize(rec)
		if err != nil {
			return fmt.Errorf("serialize record %s: %w", rec.ID, err)
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Serialize renders one record as a single output line, without a trailing
// newline.
func Serialize(rec *Record) ([]byte, error) {
	if rec.Elided || rec.Raw == nil {
		return marshalPlaceholder(rec)
	}

	line := rec.Raw
	var err error
	if rec.NewBody != "" {
		line, err = sjson.SetBytes(line, "message.content", rec.NewBody)
		if err != nil {
			return nil, fmt.Errorf("rewrite content: %w", err)
		}
	}
	if rec.Relinked {
		if rec.NewParentID == "" {
			line, err = sjson.SetRawBytes(line, "parentUuid", []byte("null"))
		} else {
			line, err = sjson.SetBytes(line, "parentUuid", rec.NewParentID)
		}
		if err != nil {
			return nil, fmt.Errorf("rewrite parent: %w", err)
		}
	}
	return line, nil
}

// placeholderLine is the wire shape of a synthetic elided record. It parses
// back through ParseLine as a system record carrying the original id and
// parent linkage.
type placeholderLine struct {
	Type       string  `json:"type"`
	UUID       string  `json:"uuid"`
	ParentUUID *string `json:"parentUuid"`
	Timestamp  string  `json:"timestamp,omitempty"`
	Content    string  `json:"content"`
}

func marshalPlaceholder(rec *Record) ([]byte, error) {
	p := placeholderLine{
		Type:    "system",
		UUID:    rec.ID,
		Content: rec.Body,
	}
	if parent := rec.EffectiveParent(); parent != "" {
		p.ParentUUID = &parent
	}
	if !rec.Timestamp.IsZero() {
		p.Timestamp = rec.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(p)
}
