package compress

import (
	"regexp"

	"github.com/MikeSquared-Agency/winnow/internal/graph"
)

// tokenRe extracts literal cross-reference candidates: file paths and dotted
// identifiers. Plain words are deliberately excluded; they overlap constantly
// without implying a dependency.
var tokenRe = regexp.MustCompile(`[\w-]+(?:[./][\w-]+)+`)

// Boosts is the result of the reference-preservation pass. Scores holds the
// effective score per arena index; Tokens records, for each boosted record,
// the literal substrings later records referenced. The compressor keeps
// those substrings verbatim.
type Boosts struct {
	Scores []int
	Tokens map[int][]string
}

// ReferenceBoosts walks records in graph child order and lifts the effective
// score of any earlier low-score record whose literal tokens reappear in a
// later record. The boost lands exactly at the threshold: enough to prevent
// removal, not enough to exempt the record from compression.
func ReferenceBoosts(g *graph.Graph, scores []int, threshold, minTokenLen int) Boosts {
	b := Boosts{
		Scores: append([]int(nil), scores...),
		Tokens: make(map[int][]string),
	}

	seen := make(map[string][]int) // token → earlier arena indexes
	for _, i := range g.Order() {
		tokens := extractTokens(g.Records[i].Body, minTokenLen)
		for _, tok := range tokens {
			for _, earlier := range seen[tok] {
				if b.Scores[earlier] >= threshold {
					continue
				}
				b.Scores[earlier] = threshold
				b.Tokens[earlier] = append(b.Tokens[earlier], tok)
			}
		}
		for _, tok := range tokens {
			seen[tok] = append(seen[tok], i)
		}
	}
	return b
}

func extractTokens(body string, minLen int) []string {
	raw := tokenRe.FindAllString(body, -1)
	uniq := make(map[string]bool, len(raw))
	var out []string
	for _, tok := range raw {
		if len(tok) < minLen || uniq[tok] {
			continue
		}
		uniq[tok] = true
		out = append(out, tok)
	}
	return out
}
