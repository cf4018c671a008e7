package service_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/provider/nutrientapi"
	"github.com/saadjs/nutrisync/internal/service"
)

func meal(id, item string, ts int64) model.LogEntry {
	return model.LogEntry{
		ID:         id,
		Category:   model.CategoryMeal,
		Item:       item,
		Quantity:   1,
		Timestamp:  ts,
		Date:       "2024-01-05",
		Provenance: model.ProvenanceUnknown,
	}
}

func result(id, name string, kcal float64) nutrientapi.Result {
	return nutrientapi.Result{
		ID:       id,
		Name:     name,
		Calories: floatPtr(kcal),
		Macros:   &model.Macros{ProteinG: 10, CarbsG: 20, FatG: 5},
	}
}

func entryByID(t *testing.T, entries []model.LogEntry, id string) model.LogEntry {
	t.Helper()
	for _, e := range entries {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("entry %s not found", id)
	return model.LogEntry{}
}

func TestReconcileExactMatchWins(t *testing.T) {
	t.Parallel()

	entries := []model.LogEntry{meal("1", "Chicken Biryani", 100), meal("2", "Chicken", 200)}
	got := service.Reconcile(entries, []nutrientapi.Result{result("item-1", "chicken biryani", 650)})

	if len(got.Matches) != 1 || got.Matches[0].EntryID != "1" || got.Matches[0].Rule != service.RuleExact {
		t.Fatalf("expected exact match on entry 1, got %+v", got.Matches)
	}
	e := entryByID(t, got.Entries, "1")
	if e.Calories == nil || *e.Calories != 650 || e.Provenance != model.ProvenanceAnalyzed {
		t.Fatalf("entry 1 not updated: %+v", e)
	}
	if other := entryByID(t, got.Entries, "2"); other.Calories != nil {
		t.Fatalf("entry 2 should be untouched: %+v", other)
	}
	if entries[0].Calories != nil {
		t.Fatalf("input slice was modified")
	}
}

func TestReconcilePositionalFallback(t *testing.T) {
	t.Parallel()

	entries := []model.LogEntry{meal("a", "Oatmeal", 100), meal("b", "Salad", 200)}
	got := service.Reconcile(entries, []nutrientapi.Result{result("item-1", "Xyz", 300)})

	if len(got.Matches) != 1 || got.Matches[0].EntryID != "b" || got.Matches[0].Rule != service.RulePositional {
		t.Fatalf("expected positional match on entry b, got %+v", got.Matches)
	}
}

func TestReconcilePositionalSkipsConsumedEntry(t *testing.T) {
	t.Parallel()

	entries := []model.LogEntry{meal("a", "Oatmeal", 100), meal("b", "Salad", 200)}
	got := service.Reconcile(entries, []nutrientapi.Result{
		result("", "salad", 150),
		result("item-1", "Xyz", 300),
	})
	if len(got.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", got.Matches)
	}
	if got.Matches[1].EntryID != "a" || got.Matches[1].Rule != service.RuleMostRecent {
		t.Fatalf("expected most-recent fallback onto a, got %+v", got.Matches[1])
	}
}

func TestReconcileSubstringContainment(t *testing.T) {
	t.Parallel()

	entries := []model.LogEntry{meal("a", "Greek yogurt with honey", 100), meal("b", "Toast", 200)}
	got := service.Reconcile(entries, []nutrientapi.Result{result("", "Greek Yogurt", 180)})

	if len(got.Matches) != 1 || got.Matches[0].EntryID != "a" || got.Matches[0].Rule != service.RuleSubstring {
		t.Fatalf("expected substring match on a, got %+v", got.Matches)
	}
}

func TestReconcileAmbiguousSubstringFallsBackToMostRecent(t *testing.T) {
	t.Parallel()

	entries := []model.LogEntry{
		meal("a", "rice bowl", 100),
		meal("b", "fried rice", 300),
		meal("c", "apple", 200),
	}
	got := service.Reconcile(entries, []nutrientapi.Result{result("", "rice", 400)})

	if len(got.Matches) != 1 || got.Matches[0].EntryID != "b" || got.Matches[0].Rule != service.RuleMostRecent {
		t.Fatalf("expected most-recent match on b, got %+v", got.Matches)
	}
}

func TestReconcileSkipsOverridesAndNonMeals(t *testing.T) {
	t.Parallel()

	manual := meal("m", "Pizza", 300)
	manual.ManualOverride = true
	manual.Calories = floatPtr(900)
	manual.Provenance = model.ProvenanceManual
	water := model.LogEntry{ID: "w", Category: model.CategoryWater, Item: "pizza", Quantity: 250, Timestamp: 400}

	got := service.Reconcile([]model.LogEntry{manual, water}, []nutrientapi.Result{result("item-0", "pizza", 500)})

	if len(got.Matches) != 0 || len(got.Dropped) != 1 || len(got.Updated) != 0 {
		t.Fatalf("expected the result to be dropped, got %+v", got)
	}
	if m := entryByID(t, got.Entries, "m"); *m.Calories != 900 || m.Provenance != model.ProvenanceManual {
		t.Fatalf("manual entry changed: %+v", m)
	}
}

func TestReconcileDropsSurplusResults(t *testing.T) {
	t.Parallel()

	entries := []model.LogEntry{meal("a", "Soup", 100)}
	got := service.Reconcile(entries, []nutrientapi.Result{
		result("", "soup", 120),
		result("", "bread", 80),
	})
	if len(got.Matches) != 1 || len(got.Dropped) != 1 || got.Dropped[0].Name != "bread" {
		t.Fatalf("expected bread dropped, got %+v", got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	entries := []model.LogEntry{
		meal("a", "Chicken Biryani", 100),
		meal("b", "Mango Lassi", 200),
		meal("c", "Naan", 300),
	}
	results := []nutrientapi.Result{
		result("item-0", "chicken biryani", 650),
		result("item-2", "garlic bread", 260),
		{Name: "mango lassi", Macros: &model.Macros{ProteinG: 6, Other: map[string]float64{"calories_kcal": 210, "sugar_g": 30}}},
	}

	first := service.Reconcile(entries, results)
	second := service.Reconcile(first.Entries, results)
	if diff := cmp.Diff(first.Entries, second.Entries); diff != "" {
		t.Fatalf("second pass changed entries (-first +second):\n%s", diff)
	}

	lassi := entryByID(t, first.Entries, "b")
	if lassi.Calories == nil || *lassi.Calories != 210 {
		t.Fatalf("expected calories from macros payload, got %+v", lassi.Calories)
	}
	if lassi.Macros.Other["sugar_g"] != 30 {
		t.Fatalf("expected extra nutrients kept, got %+v", lassi.Macros)
	}
}
