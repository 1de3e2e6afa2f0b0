package matcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipdecl/internal/domain"
	"shipdecl/internal/matcher"
)

func testLedger() domain.Ledger {
	return domain.Ledger{
		"2500430":           {ID: "2500430", TotalValue: 100},
		"PDO 2500432 (IFC)": {ID: "2500432", TotalValue: 200},
		"Sheet3":            {ID: "2411199", TotalValue: 300},
	}
}

func TestMatch_Tiers(t *testing.T) {
	res := matcher.Match([]string{"2500430", "PDO 2500432", "2511199", "999"}, testLedger())

	require.Len(t, res.Matches, 3)
	assert.Equal(t, matcher.TierExact, res.Matches[0].Tier)
	assert.Equal(t, "2500430", res.Matches[0].Record.ID)

	assert.Equal(t, matcher.TierKeySubstring, res.Matches[1].Tier)
	assert.Equal(t, "PDO 2500432 (IFC)", res.Matches[1].Key)

	assert.Equal(t, matcher.TierSuffix, res.Matches[2].Tier)
	assert.Equal(t, "2411199", res.Matches[2].Record.ID)

	assert.Equal(t, []string{"999"}, res.Unmatched)
	assert.Equal(t, []string{"2500430", "2500432", "2411199"}, res.IDs())
	assert.Len(t, res.Records(), 3)
}

func TestMatch_ExactBeatsEarlierSubstringKey(t *testing.T) {
	ledger := domain.Ledger{
		"A 2500430 old": {ID: "1111111"},
		"Z":             {ID: "2500430"},
	}

	res := matcher.Match([]string{"2500430"}, ledger)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, "Z", res.Matches[0].Key)
	assert.Equal(t, matcher.TierExact, res.Matches[0].Tier)
}

func TestMatch_NoSuffixBelowFiveChars(t *testing.T) {
	ledger := domain.Ledger{"k": {ID: "1234"}}
	res := matcher.Match([]string{"91234"}, ledger)
	assert.Empty(t, res.Matches)
	assert.Equal(t, []string{"91234"}, res.Unmatched)
}

func TestMatchUpTo_ExcludesSuffixTier(t *testing.T) {
	res := matcher.MatchUpTo([]string{"2511199"}, testLedger(), matcher.TierKeySubstring)
	assert.Empty(t, res.Matches)
	assert.Equal(t, []string{"2511199"}, res.Unmatched)
}

func TestMatch_EmptyLedger(t *testing.T) {
	res := matcher.Match([]string{"2500430"}, nil)
	assert.Empty(t, res.Matches)
	assert.Equal(t, []string{"2500430"}, res.Unmatched)
}

func TestMatchFilename(t *testing.T) {
	res := matcher.MatchFilename("PDO 2500430 & 2500432_dtd250926_IFC.pdf", testLedger())
	assert.ElementsMatch(t, []string{"2500430", "2500432"}, res.IDs())
	assert.Empty(t, res.Unmatched)

	res = matcher.MatchFilename("scan_0001.pdf", testLedger())
	assert.Empty(t, res.Matches)
	assert.Empty(t, res.Unmatched)

	res = matcher.MatchFilename("PDO 2500430.pdf", nil)
	assert.Equal(t, []string{"2500430"}, res.Unmatched)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "exact", matcher.TierExact.String())
	assert.Equal(t, "suffix", matcher.TierSuffix.String())
	assert.Equal(t, "none", matcher.Tier(0).String())
}

func TestMatch_LinkCarriesCandidateAndKey(t *testing.T) {
	ledger := domain.Ledger{"PDO 2500430": {ID: "2500430", TotalValue: 100}}

	res := matcher.Match([]string{" 2500430 "}, ledger)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, matcher.Link{
		Candidate: "2500430",
		Key:       "PDO 2500430",
		Record:    domain.LedgerRecord{ID: "2500430", TotalValue: 100},
		Tier:      matcher.TierExact,
	}, res.Matches[0])
	assert.Empty(t, res.Unmatched)
}
