package validate

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/winnow/internal/config"
	"github.com/MikeSquared-Agency/winnow/internal/score"
	"github.com/MikeSquared-Agency/winnow/internal/transcript"
)

// Failure is a fatal validation error; the safety manager rolls back on it.
type Failure struct {
	Reason string
}

func (e *Failure) Error() string { return "validation failed: " + e.Reason }

// Report is the post-condition check result attached to every PruneResult.
type Report struct {
	Structural       bool `json:"structural"`
	ChainIntact      bool `json:"chain_intact"`
	ContentPreserved bool `json:"content_preserved"`

	OutputRecords int      `json:"output_records"`
	Orphans       int      `json:"orphans"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// OK reports whether every fatal check passed.
func (r *Report) OK() bool {
	return r.Structural && r.ChainIntact && r.ContentPreserved
}

// Validator checks scratch output before the safety manager is allowed to
// commit it over the original.
type Validator struct {
	rules  config.Rules
	loader *transcript.Loader
	scorer *score.Scorer
}

func New(rules config.Rules) (*Validator, error) {
	scorer, err := score.New(rules)
	if err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}
	return &Validator{rules: rules, loader: transcript.NewLoader(rules), scorer: scorer}, nil
}

// Validate runs every check against the serialized output. A non-nil error is
// always a *Failure and means the output must not replace the original.
// Warnings (reduction outside the expected band, orphan counts) are recorded
// in the report but never block the commit. Importance scores are recomputed
// here from the original records, not taken from the orchestrator, so a
// scoring bug upstream cannot hide a lost record from this check.
func (v *Validator) Validate(original []*transcript.Record, output []byte, origBytes int) (*Report, error) {
	report := &Report{}

	// Structural validity: every output line must parse back into a record.
	outRecs, loadReport, err := v.loader.Load(bytes.NewReader(output))
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("output unparseable: %v", err))
		return report, &Failure{Reason: "output does not parse"}
	}
	if len(loadReport.Failures) > 0 {
		for _, f := range loadReport.Failures {
			report.Errors = append(report.Errors, fmt.Sprintf("output line %d: %s", f.Line, f.Reason))
		}
		return report, &Failure{Reason: fmt.Sprintf("%d output lines are malformed", len(loadReport.Failures))}
	}
	report.Structural = true
	report.OutputRecords = len(outRecs)

	// Chain integrity: every parent id resolves in the output set or the
	// record is a root. A parent that never existed in the original input is
	// a pre-existing orphan: noted, not fatal.
	ids := make(map[string]bool, len(outRecs))
	for _, rec := range outRecs {
		ids[rec.ID] = true
	}
	origIDs := make(map[string]bool, len(original))
	for _, rec := range original {
		origIDs[rec.ID] = true
	}
	dangling := 0
	for _, rec := range outRecs {
		if rec.ParentID == "" || ids[rec.ParentID] {
			continue
		}
		if !origIDs[rec.ParentID] {
			report.Orphans++
			report.Warnings = append(report.Warnings, fmt.Sprintf("record %s: orphaned parent %s carried over from input", rec.ID, rec.ParentID))
			continue
		}
		dangling++
		report.Errors = append(report.Errors, fmt.Sprintf("record %s: dangling parent %s", rec.ID, rec.ParentID))
	}
	if dangling > 0 {
		return report, &Failure{Reason: fmt.Sprintf("%d dangling parent references", dangling)}
	}
	report.ChainIntact = true

	// Size-reduction sanity: non-fatal band check.
	if origBytes > 0 {
		reduction := 1.0 - float64(len(output))/float64(origBytes)
		if reduction < v.rules.ReductionWarnLow {
			report.Warnings = append(report.Warnings, fmt.Sprintf("reduction %.1f%% is below the expected band", reduction*100))
		} else if reduction > v.rules.ReductionWarnHigh {
			report.Warnings = append(report.Warnings, fmt.Sprintf("reduction %.1f%% is above the expected band", reduction*100))
		}
	}

	// Content preservation: any record that scored at or above the ceiling
	// in the original must survive with content, not as a stand-in.
	present := make(map[string]*transcript.Record, len(outRecs))
	for _, rec := range outRecs {
		present[rec.ID] = rec
	}
	lost := 0
	for _, rec := range original {
		score := v.scorer.Score(rec)
		if score < v.rules.HighScoreCeiling {
			continue
		}
		out, ok := present[rec.ID]
		if !ok || isStandIn(out) {
			lost++
			report.Errors = append(report.Errors, fmt.Sprintf("high-score record %s (score %d) missing from output", rec.ID, score))
		}
	}
	if lost > 0 {
		return report, &Failure{Reason: fmt.Sprintf("%d high-score records lost", lost)}
	}
	report.ContentPreserved = true

	return report, nil
}

func isStandIn(rec *transcript.Record) bool {
	return rec.Type == "system" && strings.HasPrefix(rec.Body, "[elided ")
}
