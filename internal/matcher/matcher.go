// Package matcher links document identifiers to ledger records.
package matcher

import (
	"log"
	"strings"

	"shipdecl/internal/domain"
	"shipdecl/internal/normalize"
)

// Tier identifies which rule produced a match.
type Tier int

const (
	TierExact Tier = iota + 1
	TierKeySubstring
	TierSuffix
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierKeySubstring:
		return "key_substring"
	case TierSuffix:
		return "suffix"
	}
	return "none"
}

// suffixLen is the number of trailing characters compared by the fuzzy tier. Shorter
// identifiers never fuzzy-match.
const suffixLen = 5

// Link ties one candidate identifier to a ledger record.
type Link struct {
	Candidate string              `json:"candidate"`
	Key       string              `json:"key"`
	Record    domain.LedgerRecord `json:"record"`
	Tier      Tier                `json:"tier"`
}

// Result lists matches in candidate order and the candidates no tier could place.
type Result struct {
	Matches   []Link   `json:"matches"`
	Unmatched []string `json:"unmatched"`
}

// Records returns the matched ledger records in match order.
func (r Result) Records() []domain.LedgerRecord {
	out := make([]domain.LedgerRecord, 0, len(r.Matches))
	for _, m := range r.Matches {
		out = append(out, m.Record)
	}
	return out
}

// IDs returns the canonical identifiers of matched records.
func (r Result) IDs() []string {
	out := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		out = append(out, m.Record.ID)
	}
	return out
}

// Match runs all three tiers.
func Match(candidates []string, ledger domain.Ledger) Result {
	return MatchUpTo(candidates, ledger, TierSuffix)
}

// MatchUpTo tries tiers in order for each candidate, stopping at maxTier. Each tier
// scans the whole ledger in key order before the next tier is tried.
func MatchUpTo(candidates []string, ledger domain.Ledger, maxTier Tier) Result {
	res := Result{Matches: []Link{}, Unmatched: []string{}}
	keys := ledger.Keys()
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if m, ok := matchOne(c, ledger, keys, maxTier); ok {
			res.Matches = append(res.Matches, m)
			continue
		}
		res.Unmatched = append(res.Unmatched, c)
	}
	return res
}

func matchOne(candidate string, ledger domain.Ledger, keys []string, maxTier Tier) (Link, bool) {
	for tier := TierExact; tier <= maxTier; tier++ {
		for _, k := range keys {
			rec := ledger[k]
			if tierMatches(tier, candidate, k, rec.ID) {
				return Link{Candidate: candidate, Key: k, Record: rec, Tier: tier}, true
			}
		}
	}
	return Link{}, false
}

func tierMatches(tier Tier, candidate, key, id string) bool {
	switch tier {
	case TierExact:
		return id == candidate
	case TierKeySubstring:
		return strings.Contains(key, candidate)
	case TierSuffix:
		return len(candidate) >= suffixLen && len(id) >= suffixLen &&
			candidate[len(candidate)-suffixLen:] == id[len(id)-suffixLen:]
	}
	return false
}

// MatchFilename extracts purchase-order numbers from a file name and matches them.
func MatchFilename(filename string, ledger domain.Ledger) Result {
	candidates := normalize.PDONumbers(filename)
	if len(candidates) == 0 {
		return Result{Matches: []Link{}, Unmatched: []string{}}
	}
	if len(ledger) == 0 {
		log.Printf("matcher.MatchFilename: no ledger data to match %s against", filename)
		return Result{Matches: []Link{}, Unmatched: candidates}
	}
	res := Match(candidates, ledger)
	for _, u := range res.Unmatched {
		log.Printf("matcher.MatchFilename: no ledger match for %s from %s (available: %v)", u, filename, ledger.IDs())
	}
	return res
}
