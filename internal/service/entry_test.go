package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/service"
)

func TestCreateEntryFixesDateInLocation(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	tokyo := time.FixedZone("JST", 9*60*60)
	e, err := service.CreateEntry(db, service.CreateEntryInput{
		Category: "Meal",
		Item:     "Ramen",
		Quantity: 1,
		At:       time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC),
		Location: tokyo,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if e.Date != "2024-01-06" {
		t.Fatalf("expected tokyo calendar day 2024-01-06, got %s", e.Date)
	}
	if e.ID == "" || e.ManualOverride || e.Provenance != model.ProvenanceUnknown {
		t.Fatalf("unexpected new entry %+v", e)
	}

	got, err := service.GetEntry(db, e.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if got.Date != e.Date || got.Timestamp != e.Timestamp || got.Item != "Ramen" {
		t.Fatalf("stored entry differs: %+v vs %+v", got, e)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	bad := []service.CreateEntryInput{
		{Category: "snack", Item: "chips", Quantity: 1},
		{Category: "meal", Item: " ", Quantity: 1},
		{Category: "meal", Item: "rice", Quantity: 0},
		{Category: "meal", Item: "rice", Quantity: 1, Calories: floatPtr(-5)},
		{Category: "meal", Item: "rice", Quantity: 1, Macros: &model.Macros{FatG: -1}},
	}
	for _, in := range bad {
		if _, err := service.CreateEntry(db, in); err == nil {
			t.Fatalf("expected validation error for %+v", in)
		}
	}

	water, err := service.CreateEntry(db, service.CreateEntryInput{Category: "water", Quantity: 500})
	if err != nil {
		t.Fatalf("create water: %v", err)
	}
	if water.Item != "water" {
		t.Fatalf("expected default item name, got %q", water.Item)
	}
}

func TestManualOverrideLifecycle(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	e := addMeal(t, db, "2024-01-05", 0, "Pasta")

	if err := service.SetManualNutrition(db, e.ID, 700, &model.Macros{ProteinG: 25, CarbsG: 90, FatG: 20}); err != nil {
		t.Fatalf("set manual nutrition: %v", err)
	}
	analyzed := e
	analyzed.Calories = floatPtr(450)
	applied, err := service.ApplyAnalyzedNutrition(ctx, db, analyzed)
	if err != nil {
		t.Fatalf("apply analyzed: %v", err)
	}
	if applied {
		t.Fatalf("analysis must not overwrite a manual override")
	}
	got, _ := service.GetEntry(db, e.ID)
	if got.Calories == nil || *got.Calories != 700 || got.Provenance != model.ProvenanceManual || got.Macros.CarbsG != 90 {
		t.Fatalf("manual values lost: %+v", got)
	}

	if err := service.ClearManualOverride(db, e.ID); err != nil {
		t.Fatalf("clear override: %v", err)
	}
	applied, err = service.ApplyAnalyzedNutrition(ctx, db, analyzed)
	if err != nil || !applied {
		t.Fatalf("expected analysis to apply after clearing override, applied=%v err=%v", applied, err)
	}
	got, _ = service.GetEntry(db, e.ID)
	if *got.Calories != 450 || got.Provenance != model.ProvenanceAnalyzed || got.Macros != nil {
		t.Fatalf("unexpected analyzed entry: %+v", got)
	}
}

func TestListEntriesOrderAndFilters(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	late := addMeal(t, db, "2024-01-05", 30, "Dinner")
	early := addMeal(t, db, "2024-01-05", -30, "Lunch")
	addMeal(t, db, "2024-01-04", 0, "Yesterday")
	if _, err := service.CreateEntry(db, service.CreateEntryInput{Category: "water", Quantity: 250, At: at(t, "2024-01-05", 0), Location: time.UTC}); err != nil {
		t.Fatalf("create water: %v", err)
	}

	meals, err := service.ListEntries(db, service.ListEntriesFilter{Date: "2024-01-05", Category: "meal"})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(meals) != 2 || meals[0].ID != early.ID || meals[1].ID != late.ID {
		t.Fatalf("expected [lunch dinner], got %+v", meals)
	}

	all, err := service.ListEntries(db, service.ListEntriesFilter{FromDate: "2024-01-04", ToDate: "2024-01-05"})
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}

	if _, err := service.ListEntries(db, service.ListEntriesFilter{Date: "2024-01-05", FromDate: "2024-01-01"}); err == nil {
		t.Fatalf("expected error combining date with range")
	}
}

func TestDeleteEntryNotFound(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	e := addMeal(t, db, "2024-01-05", 0, "Soup")
	if err := service.DeleteEntry(db, e.ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	if err := service.DeleteEntry(db, e.ID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := service.GetEntry(db, e.ID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
}

func TestProfileRoundTripAndGoals(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	p, err := service.LoadProfile(db)
	if err != nil || p != nil {
		t.Fatalf("expected no profile, got %+v err=%v", p, err)
	}
	if err := service.SaveProfile(db, service.SetProfileInput{Sex: "male", Age: 25, HeightCm: 170, WeightKg: 70, ActivityLevel: "moderate", Goal: "maintenance"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	p, err = service.LoadProfile(db)
	if err != nil || p == nil {
		t.Fatalf("load profile: %+v err=%v", p, err)
	}
	if p.ActivityLevel != service.ActivityModeratelyActive {
		t.Fatalf("expected alias stored canonical, got %q", p.ActivityLevel)
	}
	goals, err := service.CurrentGoals(db)
	if err != nil {
		t.Fatalf("current goals: %v", err)
	}
	if goals.TDEE != 2546 {
		t.Fatalf("expected tdee 2546, got %d", goals.TDEE)
	}

	if err := service.SaveProfile(db, service.SetProfileInput{Sex: "other", Age: 25, HeightCm: 170, WeightKg: 70, ActivityLevel: "sedentary", Goal: "maintenance"}); err == nil {
		t.Fatalf("expected invalid sex error")
	}
}
