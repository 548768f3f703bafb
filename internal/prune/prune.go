package prune

import (
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/winnow/internal/compress"
	"github.com/MikeSquared-Agency/winnow/internal/config"
	"github.com/MikeSquared-Agency/winnow/internal/graph"
	"github.com/MikeSquared-Agency/winnow/internal/score"
	"github.com/MikeSquared-Agency/winnow/internal/transcript"
)

// Stage tracks the pipeline state machine over a whole transcript.
type Stage int

const (
	StageLoaded Stage = iota
	StageScored
	StageDecided
	StageCompressed
	StageSerialized
)

func (s Stage) String() string {
	switch s {
	case StageLoaded:
		return "loaded"
	case StageScored:
		return "scored"
	case StageDecided:
		return "decided"
	case StageCompressed:
		return "compressed"
	case StageSerialized:
		return "serialized"
	default:
		return "unknown"
	}
}

// Outcome is the orchestrator's product: the surviving records in original
// sequence order plus decision counters.
type Outcome struct {
	Records []*transcript.Record // retained records and elided placeholders

	Original   int
	Retained   int // records kept with content
	Elided     int // placeholder stand-ins
	Removed    int // records collapsed into a preceding placeholder
	Boosted    int // records saved by the reference-preservation pass
	Compressed int // retained records whose body was truncated or redacted

	Scores    []int // effective score per original arena index
	RawScores []int // content-only score per original arena index
	Stage     Stage
}

// Orchestrator decides retention per record and produces the output set. It
// never reorders records and never touches the filesystem; serialization and
// commit belong to the safety manager.
type Orchestrator struct {
	rules  config.Rules
	scorer *score.Scorer
	comp   *compress.Compressor
	logger *slog.Logger
}

func New(rules config.Rules, logger *slog.Logger) (*Orchestrator, error) {
	scorer, err := score.New(rules)
	if err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}
	comp, err := compress.NewCompressor(rules, scorer.KeepPatterns())
	if err != nil {
		return nil, fmt.Errorf("compressor: %w", err)
	}
	return &Orchestrator{rules: rules, scorer: scorer, comp: comp, logger: logger}, nil
}

// Run executes score → decide → compress for one transcript.
func (o *Orchestrator) Run(recs []*transcript.Record, g *graph.Graph, level config.Level) (*Outcome, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("empty transcript")
	}
	threshold := o.rules.Threshold(level)

	out := &Outcome{Original: len(recs), Stage: StageLoaded}

	out.RawScores = o.scorer.ScoreAll(recs)
	out.Stage = StageScored

	boosts := compress.ReferenceBoosts(g, out.RawScores, threshold, o.rules.ReferenceMinTokenLen)
	out.Scores = boosts.Scores
	out.Boosted = len(boosts.Tokens)

	retained := o.decide(recs, g, out.Scores, threshold)
	out.Stage = StageDecided

	survivors := o.collapse(recs, retained)
	o.relink(recs, survivors)

	for _, rec := range survivors {
		if rec.Elided {
			out.Elided++
		} else {
			out.Retained++
		}
	}
	out.Removed = out.Original - len(survivors)

	for _, rec := range survivors {
		if rec.Elided {
			continue
		}
		idx, ok := g.Lookup(rec.ID)
		var keep []string
		if ok {
			keep = boosts.Tokens[idx]
		}
		if body, changed := o.comp.Compress(rec.Body, keep); changed {
			rec.NewBody = body
			out.Compressed++
		}
	}
	out.Stage = StageCompressed

	out.Records = survivors
	o.logger.Debug("prune decided",
		"level", string(level),
		"threshold", threshold,
		"original", out.Original,
		"retained", out.Retained,
		"elided", out.Elided,
		"removed", out.Removed,
		"boosted", out.Boosted,
		"compressed", out.Compressed,
	)
	return out, nil
}

// decide marks retention per record in graph order. A record survives with
// content when its effective score clears the threshold or when it is an
// orphan (dropping an orphan loses the only handle on its subtree).
func (o *Orchestrator) decide(recs []*transcript.Record, g *graph.Graph, scores []int, threshold int) []bool {
	retained := make([]bool, len(recs))
	for _, i := range g.Order() {
		retained[i] = scores[i] >= threshold || g.IsOrphan(i)
		recs[i].Retained = retained[i]
	}
	return retained
}

// collapse turns runs of consecutive non-retained records into a single
// placeholder that keeps the first record's id and linkage, so later
// traversals stay connected. The first and last record of the transcript are
// never swallowed by a neighboring run: each gets its own stand-in.
func (o *Orchestrator) collapse(recs []*transcript.Record, retained []bool) []*transcript.Record {
	last := len(recs) - 1
	var out []*transcript.Record

	for i := 0; i <= last; {
		if retained[i] {
			out = append(out, recs[i])
			i++
			continue
		}

		j := i
		if i != 0 && i != last {
			for j+1 <= last && j+1 != last && !retained[j+1] {
				j++
			}
		}
		out = append(out, placeholder(recs[i:j+1]))
		i = j + 1
	}
	return out
}

func placeholder(run []*transcript.Record) *transcript.Record {
	bytes := 0
	for _, rec := range run {
		bytes += len(rec.Raw)
	}
	word := "records"
	if len(run) == 1 {
		word = "record"
	}
	first := run[0]
	return &transcript.Record{
		ID:        first.ID,
		ParentID:  first.ParentID,
		Type:      "system",
		Timestamp: first.Timestamp,
		Body:      fmt.Sprintf("[elided %d %s, %d bytes]", len(run), word, bytes),
		Variant:   transcript.VariantSystemNotice,
		Seq:       first.Seq,
		Elided:    true,
	}
}

// relink repoints parents of surviving records at their nearest surviving
// ancestor. A parent pointer never lands on a removed node; if the whole
// ancestry was removed the record becomes a root.
func (o *Orchestrator) relink(recs []*transcript.Record, survivors []*transcript.Record) {
	byID := make(map[string]*transcript.Record, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}
	surviving := make(map[string]bool, len(survivors))
	for _, rec := range survivors {
		surviving[rec.ID] = true
	}

	for _, rec := range survivors {
		parent := rec.ParentID
		if parent == "" || surviving[parent] {
			continue
		}
		if _, known := byID[parent]; !known {
			// Pre-existing orphan: the unresolved pointer is kept as-is.
			continue
		}
		visited := map[string]bool{rec.ID: true}
		for parent != "" && !surviving[parent] {
			if visited[parent] {
				parent = "" // ancestry cycle, treat as root
				break
			}
			visited[parent] = true
			anc, ok := byID[parent]
			if !ok {
				parent = "" // orphaned ancestry
				break
			}
			parent = anc.ParentID
		}
		if rec.Elided {
			rec.ParentID = parent
		} else {
			rec.NewParentID = parent
			rec.Relinked = true
		}
	}
}
