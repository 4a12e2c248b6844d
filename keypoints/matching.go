package keypoints

import (
	"math/bits"
	"sort"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// MatchingConfig holds the parameters for descriptor matching.
type MatchingConfig struct {
	// Ratio is the Lowe ratio: a match is kept only when its distance is
	// below Ratio times the distance to the second best candidate.
	Ratio      float64 `json:"ratio"`
	MinMatches int     `json:"min_matches"`
	CrossCheck bool    `json:"cross_check"`
}

// DefaultMatchingConfig returns the matching parameters used when a
// configuration file does not override them.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Ratio:      0.75,
		MinMatches: 10,
		CrossCheck: false,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *MatchingConfig) Validate(path string) error {
	if cfg.Ratio <= 0 || cfg.Ratio >= 1 {
		return utils.NewConfigValidationError(path, errors.New("ratio must be in (0, 1)"))
	}
	if cfg.MinMatches < 4 {
		return utils.NewConfigValidationError(path, errors.New("min_matches must be at least 4"))
	}
	return nil
}

// Match pairs a query descriptor index with its best reference descriptor
// index at the given Hamming distance.
type Match struct {
	QueryIdx int
	RefIdx   int
	Distance int
}

// HammingDistance counts the differing bits of two descriptors.
func HammingDistance(a, b Descriptor) int {
	d := 0
	for i := range a {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	return d
}

// MatchDescriptors matches every query descriptor against the reference set
// with a two-nearest-neighbor search and keeps the matches that pass the
// ratio test, sorted by ascending distance. Ambiguous descriptors, whose two
// best candidates are near equally distant, are discarded.
func MatchDescriptors(query, ref Descriptors, cfg *MatchingConfig, logger golog.Logger) []Match {
	if len(query) == 0 || len(ref) < 2 {
		if logger != nil {
			logger.Debugw("not enough descriptors to match", "query", len(query), "ref", len(ref))
		}
		return nil
	}
	matches := make([]Match, 0, len(query))
	for qi, q := range query {
		best, second := -1, -1
		bestD, secondD := 0, 0
		for ri, r := range ref {
			d := HammingDistance(q, r)
			switch {
			case best == -1 || d < bestD:
				second, secondD = best, bestD
				best, bestD = ri, d
			case second == -1 || d < secondD:
				second, secondD = ri, d
			}
		}
		if second == -1 {
			continue
		}
		if float64(bestD) < cfg.Ratio*float64(secondD) {
			matches = append(matches, Match{QueryIdx: qi, RefIdx: best, Distance: bestD})
		}
	}
	if cfg.CrossCheck {
		matches = crossCheck(query, ref, matches)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].QueryIdx < matches[j].QueryIdx
	})
	return matches
}

// crossCheck drops matches whose reference descriptor prefers another query
// descriptor.
func crossCheck(query, ref Descriptors, matches []Match) []Match {
	kept := make([]Match, 0, len(matches))
	for _, m := range matches {
		best, bestD := -1, 0
		for qi, q := range query {
			d := HammingDistance(q, ref[m.RefIdx])
			if best == -1 || d < bestD {
				best, bestD = qi, d
			}
		}
		if best == m.QueryIdx {
			kept = append(kept, m)
		}
	}
	return kept
}

// GetMatchingKeyPoints resolves matches into two aligned keypoint slices,
// query first.
func GetMatchingKeyPoints(matches []Match, queryKps, refKps KeyPoints) (KeyPoints, KeyPoints, error) {
	q := make(KeyPoints, len(matches))
	r := make(KeyPoints, len(matches))
	for i, m := range matches {
		if m.QueryIdx < 0 || m.QueryIdx >= len(queryKps) || m.RefIdx < 0 || m.RefIdx >= len(refKps) {
			return nil, nil, errors.Errorf("match %d references keypoints out of range", i)
		}
		q[i] = queryKps[m.QueryIdx]
		r[i] = refKps[m.RefIdx]
	}
	return q, r, nil
}
