// pkg/cleaner/fuzzy.go
package cleaner

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// Metric names a string similarity function
type Metric string

const (
	// MetricEditRatio is 1 - levenshtein(a, b) / max(len(a), len(b))
	MetricEditRatio Metric = "edit_ratio"
	// MetricTokenSet compares the sorted token sets of both strings
	MetricTokenSet Metric = "token_set"
)

// DefaultFuzzyThreshold is used when no threshold is configured
const DefaultFuzzyThreshold = 0.9

// ParseMetric validates a configured metric name
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MetricEditRatio, nil
	case MetricEditRatio, MetricTokenSet:
		return m, nil
	default:
		return "", errors.Wrapf(ErrInvalidStrategy, "fuzzy metric %q", s)
	}
}

// ValidateThreshold checks that tau lies in (0,1]
func ValidateThreshold(tau float64) error {
	if !(tau > 0 && tau <= 1) {
		return errors.Wrapf(ErrInvalidThreshold, "got %v", tau)
	}
	return nil
}

// FuzzyDeduplicator collapses near-duplicate strings within a column. Values
// are folded (trimmed, whitespace collapsed, lowercased) before comparison.
type FuzzyDeduplicator struct {
	metric     Metric
	similarity func(a, b string) float64
	logger     *zap.Logger
}

// NewFuzzyDeduplicator creates a deduplicator bound to one similarity metric
func NewFuzzyDeduplicator(metric Metric, logger *zap.Logger) (*FuzzyDeduplicator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &FuzzyDeduplicator{metric: metric, logger: logger.Named("fuzzy")}
	switch metric {
	case MetricEditRatio:
		d.similarity = EditRatio
	case MetricTokenSet:
		d.similarity = TokenSetRatio
	default:
		return nil, errors.Wrapf(ErrInvalidStrategy, "fuzzy metric %q", metric)
	}
	return d, nil
}

// Similarity scores two raw values in [0,1] after folding
func (d *FuzzyDeduplicator) Similarity(a, b string) float64 {
	return d.similarity(NormalizeText(a), NormalizeText(b))
}

// EditRatio is the normalized Levenshtein similarity of two strings
func EditRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(longest)
}

// TokenSetRatio compares the shared tokens of both strings against each side's
// remainder and keeps the best edit ratio
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	var common, onlyA, onlyB []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := EditRatio(withA, withB)
	if base != "" {
		if r := EditRatio(base, withA); r > best {
			best = r
		}
		if r := EditRatio(base, withB); r > best {
			best = r
		}
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// entry is one distinct raw value of the column
type entry struct {
	raw    string
	folded string
	runes  int
	freq   int
}

// Deduplicate clusters the distinct string values of col by single-link
// agglomeration under threshold tau and rewrites every member of a multi-value
// cluster to its representative: the most frequent value, then the shortest,
// then the lexicographically smallest. The count is the number of cells rewritten.
func (d *FuzzyDeduplicator) Deduplicate(col *model.Column, tau float64) (model.CleaningAction, error) {
	if err := ValidateThreshold(tau); err != nil {
		return model.CleaningAction{}, err
	}

	index := make(map[string]int)
	var entries []entry
	for _, v := range col.Values {
		if v.Kind != model.KindString {
			continue
		}
		if i, ok := index[v.Str]; ok {
			entries[i].freq++
			continue
		}
		index[v.Str] = len(entries)
		folded := NormalizeText(v.Str)
		entries = append(entries, entry{raw: v.Str, folded: folded, runes: utf8.RuneCountInString(folded), freq: 1})
	}

	sets := newUnionFind(len(entries))
	comparisons := d.link(entries, tau, sets)

	clusters := make(map[int][]int)
	for i := range entries {
		root := sets.find(i)
		clusters[root] = append(clusters[root], i)
	}

	canonical := make(map[string]string)
	multi := 0
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		multi++
		rep := representative(entries, members)
		for _, m := range members {
			if entries[m].raw != rep {
				canonical[entries[m].raw] = rep
			}
		}
	}

	rewritten := 0
	for i, v := range col.Values {
		if v.Kind != model.KindString {
			continue
		}
		if rep, ok := canonical[v.Str]; ok {
			col.Values[i] = model.StringValue(rep)
			rewritten++
		}
	}

	d.logger.Debug("Fuzzy clustering finished",
		zap.String("column", col.Name),
		zap.Int("distinct", len(entries)),
		zap.Int("comparisons", comparisons),
		zap.Int("clusters", multi))

	action := model.NewAction(model.StageFuzzyDeduplication, col.Name, rewritten,
		"Deduplicated %d text entries in '%s' using fuzzy matching (%s >= %.2f)", rewritten, col.Name, d.metric, tau)
	d.logger.Info(action.Description,
		zap.String("stage", string(action.Stage)),
		zap.String("column", action.Column),
		zap.Int("count", action.Count))
	return action, nil
}

// link unions every pair scoring at least tau and returns the number of
// comparisons made. For the edit ratio, pairs whose folded lengths differ by
// more than (1-tau) of the longer length cannot reach tau and are skipped.
func (d *FuzzyDeduplicator) link(entries []entry, tau float64, sets *unionFind) int {
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return entries[order[a]].runes < entries[order[b]].runes
	})

	const eps = 1e-9
	comparisons := 0
	for x := 0; x < len(order); x++ {
		a := entries[order[x]]
		for y := x + 1; y < len(order); y++ {
			b := entries[order[y]]
			if d.metric == MetricEditRatio && float64(b.runes-a.runes) > (1-tau)*float64(b.runes)+eps {
				break
			}
			if sets.find(order[x]) == sets.find(order[y]) {
				continue
			}
			comparisons++
			if d.similarity(a.folded, b.folded) >= tau-eps {
				sets.union(order[x], order[y])
			}
		}
	}
	return comparisons
}

func representative(entries []entry, members []int) string {
	best := entries[members[0]]
	for _, m := range members[1:] {
		e := entries[m]
		switch {
		case e.freq != best.freq:
			if e.freq > best.freq {
				best = e
			}
		case utf8.RuneCountInString(e.raw) != utf8.RuneCountInString(best.raw):
			if utf8.RuneCountInString(e.raw) < utf8.RuneCountInString(best.raw) {
				best = e
			}
		case e.raw < best.raw:
			best = e
		}
	}
	return best.raw
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
