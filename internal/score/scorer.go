package score

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/winnow/internal/config"
	"github.com/MikeSquared-Agency/winnow/internal/transcript"
)

// Pattern sources. Matching is case-insensitive; everything is compiled once
// per scorer and reused across the whole transcript.
const (
	codeModPattern  = `(?i)\b(edit(ed|ing)?|wr(ite|iting|itten|ote)|creat(e|ed|ing)|modif(y|ied|ying)|updat(e|ed|ing))\b[^\n]{0,120}\.(go|py|js|jsx|ts|tsx|java|rs|c|h|cpp|rb|sh|sql|proto|yaml|yml|toml|json|md)\b`
	errorPattern    = `(?i)\b(error|exception|traceback|panic|fatal|failed|failure)\b`
	fixPattern      = `(?i)\b(fix(ed|es)?|resolv(e|ed|es)|solution|patch(ed)?|correct(ed)?|working now)\b`
	archPattern     = `(?i)\b(architecture|design decision|trade-?offs?|refactor(ing)?|we should use|decided (to|on)|switch(ing)? to|instead of using)\b`
	filePattern     = `(?i)\b[\w./-]+\.(go|py|js|jsx|ts|tsx|java|rs|c|h|cpp|rb|sh|sql|proto|yaml|yml|toml|json|md|txt|lock|mod)\b`
	tracePattern    = `(?im)(stack trace|traceback \(most recent call last\)|goroutine \d+|^\s+at [\w.$/<>]+\(|panic:|\.go:\d+|line \d+, in )`
	hookPattern     = `(?i)(\bhook (completed|executed|finished|ran)\b|automation (complete|finished)|\[auto\]|stop hook feedback|post-?commit hook)`
	confirmPattern  = `(?i)^\s*(ok(ay)?|done|success(fully)? ?(completed)?|validation passed|all checks passed|lgtm|confirmed)\s*[.!]?\s*$`
	questionPattern = `(?i)(\?|^\s*(how|why|what|where|when|which|can|could|should|would|is there|are there|do(es)? (it|this|that))\b)`
)

// Scorer assigns a 0–100 importance value to a record from its content and
// type alone. It holds no per-transcript state, so one scorer serves any
// number of files.
type Scorer struct {
	weights config.Weights

	codeMod  *regexp.Regexp
	errRe    *regexp.Regexp
	fixRe    *regexp.Regexp
	arch     *regexp.Regexp
	file     *regexp.Regexp
	trace    *regexp.Regexp
	hook     *regexp.Regexp
	confirm  *regexp.Regexp
	question *regexp.Regexp
}

// New compiles the pattern tables for the given rules.
func New(rules config.Rules) (*Scorer, error) {
	s := &Scorer{weights: rules.Weights}
	for _, p := range []struct {
		dst **regexp.Regexp
		src string
	}{
		{&s.codeMod, codeModPattern},
		{&s.errRe, errorPattern},
		{&s.fixRe, fixPattern},
		{&s.arch, archPattern},
		{&s.file, filePattern},
		{&s.trace, tracePattern},
		{&s.hook, hookPattern},
		{&s.confirm, confirmPattern},
		{&s.question, questionPattern},
	} {
		re, err := regexp.Compile(p.src)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p.src, err)
		}
		*p.dst = re
	}
	return s, nil
}

// Score computes the importance of a single record. Deterministic and
// context-free: graph structure never feeds in here.
func (s *Scorer) Score(rec *transcript.Record) int {
	body := rec.Body
	w := s.weights
	score := 0

	if strings.TrimSpace(body) == "" {
		return clamp(w.EmptyContent)
	}

	if rec.Variant == transcript.VariantCodeEdit || s.codeMod.MatchString(body) {
		score += w.CodeModification
	}
	if s.errRe.MatchString(body) && s.fixRe.MatchString(body) {
		score += w.ErrorWithFix
	}
	if s.arch.MatchString(body) {
		score += w.Architecture
	}
	if rec.Type == "user" && s.question.MatchString(body) {
		score += w.UserQuestion
	}
	if s.file.MatchString(body) {
		score += w.FileReference
	}
	if s.trace.MatchString(body) {
		score += w.DebugTrace
	}
	if s.hook.MatchString(body) {
		score += w.HookBoilerplate
	}
	if s.confirm.MatchString(body) {
		score += w.Confirmation
	}

	return clamp(score)
}

// KeepPatterns returns the compiled positive-weight patterns. Lines matching
// any of them must survive compression: a record retained for those matches
// would otherwise score lower when the pruned output is pruned again.
func (s *Scorer) KeepPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{s.codeMod, s.errRe, s.fixRe, s.arch, s.file, s.trace, s.question}
}

// ScoreAll scores every record and returns the values indexed by arena
// position.
func (s *Scorer) ScoreAll(recs []*transcript.Record) []int {
	out := make([]int, len(recs))
	for i, rec := range recs {
		out[i] = s.Score(rec)
		rec.Score = out[i]
	}
	return out
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
