package service

import (
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/provider/nutrientapi"
)

type MatchRule string

const (
	RuleExact      MatchRule = "exact"
	RulePositional MatchRule = "positional"
	RuleSubstring  MatchRule = "substring"
	RuleMostRecent MatchRule = "most_recent"
)

type Match struct {
	ResultIndex int
	EntryID     string
	Rule        MatchRule
}

type DroppedResult struct {
	ResultIndex int
	Name        string
}

// ReconcileResult holds the input entries with analyzed nutrition applied, in
// their original order. Updated lists only the entries that changed.
type ReconcileResult struct {
	Entries []model.LogEntry
	Updated []model.LogEntry
	Matches []Match
	Dropped []DroppedResult
}

var positionalID = regexp.MustCompile(`^item-(\d+)$`)

// Reconcile assigns each analysis result to at most one meal entry without a
// manual override. entries must be the job's submission snapshot in
// submission order. The input slice is not modified.
func Reconcile(entries []model.LogEntry, results []nutrientapi.Result) ReconcileResult {
	out := ReconcileResult{
		Entries: make([]model.LogEntry, len(entries)),
		Matches: make([]Match, 0, len(results)),
	}
	copy(out.Entries, entries)

	// meals maps submission position to index in out.Entries.
	meals := make([]int, 0, len(entries))
	pool := make(map[int]bool)
	for i, e := range out.Entries {
		if !e.IsMeal() {
			continue
		}
		meals = append(meals, i)
		if !e.ManualOverride {
			pool[i] = true
		}
	}

	touched := make(map[int]bool)
	for ri, r := range results {
		idx, rule, ok := selectEntry(out.Entries, meals, pool, r)
		if !ok {
			out.Dropped = append(out.Dropped, DroppedResult{ResultIndex: ri, Name: r.Name})
			continue
		}
		delete(pool, idx)
		applyResult(&out.Entries[idx], r)
		touched[idx] = true
		out.Matches = append(out.Matches, Match{ResultIndex: ri, EntryID: out.Entries[idx].ID, Rule: rule})
	}

	for i := range out.Entries {
		if touched[i] {
			out.Updated = append(out.Updated, out.Entries[i])
		}
	}
	return out
}

func selectEntry(entries []model.LogEntry, meals []int, pool map[int]bool, r nutrientapi.Result) (int, MatchRule, bool) {
	if len(pool) == 0 {
		return 0, "", false
	}
	name := NormalizeName(r.Name)

	if name != "" {
		if idx, ok := single(meals, pool, func(e model.LogEntry) bool {
			return NormalizeName(e.Item) == name
		}, entries); ok {
			return idx, RuleExact, true
		}
	}

	if m := positionalID.FindStringSubmatch(strings.TrimSpace(r.ID)); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n < len(meals) && pool[meals[n]] {
			return meals[n], RulePositional, true
		}
	}

	if name != "" {
		if idx, ok := single(meals, pool, func(e model.LogEntry) bool {
			item := NormalizeName(e.Item)
			return item != "" && (strings.Contains(item, name) || strings.Contains(name, item))
		}, entries); ok {
			return idx, RuleSubstring, true
		}
	}

	best := -1
	for _, i := range meals {
		if !pool[i] {
			continue
		}
		// Ties go to the later submission.
		if best < 0 || entries[i].Timestamp >= entries[best].Timestamp {
			best = i
		}
	}
	return best, RuleMostRecent, best >= 0
}

// single returns the only pooled meal satisfying match.
func single(meals []int, pool map[int]bool, match func(model.LogEntry) bool, entries []model.LogEntry) (int, bool) {
	found := -1
	for _, i := range meals {
		if !pool[i] || !match(entries[i]) {
			continue
		}
		if found >= 0 {
			return 0, false
		}
		found = i
	}
	return found, found >= 0
}

func applyResult(e *model.LogEntry, r nutrientapi.Result) {
	if kcal, ok := r.EffectiveCalories(); ok {
		e.Calories = &kcal
	}
	if r.Macros != nil {
		m := *r.Macros
		m.Other = maps.Clone(r.Macros.Other)
		e.Macros = &m
	}
	e.Provenance = model.ProvenanceAnalyzed
}
