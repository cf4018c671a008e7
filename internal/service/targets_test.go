package service_test

import (
	"math"
	"testing"

	"github.com/saadjs/nutrisync/internal/model"
	"github.com/saadjs/nutrisync/internal/service"
)

func TestComputeGoalsReferenceProfile(t *testing.T) {
	t.Parallel()

	goals := service.ComputeGoals(model.Profile{
		Sex:           "male",
		Age:           25,
		HeightCm:      170,
		WeightKg:      70,
		ActivityLevel: "moderately_active",
		Goal:          "maintenance",
	})
	if goals.BMR != 1643 {
		t.Fatalf("expected bmr 1643, got %d", goals.BMR)
	}
	if goals.TDEE != 2546 {
		t.Fatalf("expected tdee 2546, got %d", goals.TDEE)
	}
	if goals.MaintenanceCalories != goals.TDEE {
		t.Fatalf("maintenance %d should equal tdee %d", goals.MaintenanceCalories, goals.TDEE)
	}
	if goals.Macros.ProteinG != 112 || goals.Macros.FatG != 56 || goals.Macros.CarbsG != 398 {
		t.Fatalf("unexpected macros %+v", goals.Macros)
	}
	if goals.WaterTargetMl != 2450 || goals.SleepTargetH != 8 {
		t.Fatalf("unexpected habit targets water=%d sleep=%v", goals.WaterTargetMl, goals.SleepTargetH)
	}
}

func TestComputeGoalsDefaultsInvalidFields(t *testing.T) {
	t.Parallel()

	invalid := service.ComputeGoals(model.Profile{
		Age:           math.NaN(),
		HeightCm:      -3,
		WeightKg:      math.Inf(1),
		ActivityLevel: "couch",
		Goal:          "bulk",
	})
	defaults := service.ComputeGoals(model.Profile{})
	if invalid.BMR != defaults.BMR || invalid.TDEE != defaults.TDEE || invalid.Macros != defaults.Macros {
		t.Fatalf("expected defaults, got %+v vs %+v", invalid, defaults)
	}
	if invalid.Profile.ActivityLevel != service.ActivityModeratelyActive || invalid.Profile.Goal != service.GoalMaintenance {
		t.Fatalf("unexpected normalized profile %+v", invalid.Profile)
	}
}

func TestComputeGoalsFemaleAndGoalAdjustments(t *testing.T) {
	t.Parallel()

	base := model.Profile{Sex: "female", Age: 30, HeightCm: 165, WeightKg: 60, ActivityLevel: "light"}
	maintain := service.ComputeGoals(base)
	// 600 + 1031.25 - 150 - 161
	if maintain.BMR != 1320 {
		t.Fatalf("expected bmr 1320, got %d", maintain.BMR)
	}
	if maintain.Profile.ActivityLevel != service.ActivityLightlyActive {
		t.Fatalf("expected alias to resolve, got %q", maintain.Profile.ActivityLevel)
	}

	base.Goal = "weight_loss"
	loss := service.ComputeGoals(base)
	base.Goal = "weight_gain"
	gain := service.ComputeGoals(base)
	if !(loss.TDEE < maintain.TDEE && maintain.TDEE < gain.TDEE) {
		t.Fatalf("expected loss < maintain < gain, got %d %d %d", loss.TDEE, maintain.TDEE, gain.TDEE)
	}
	if loss.MaintenanceCalories != maintain.TDEE {
		t.Fatalf("maintenance should ignore goal, got %d vs %d", loss.MaintenanceCalories, maintain.TDEE)
	}
}

func TestCarbGoalNeverNegative(t *testing.T) {
	t.Parallel()

	profiles := []model.Profile{
		{Sex: "female", Age: 90, HeightCm: 120, WeightKg: 250, ActivityLevel: "sedentary", Goal: "weight_loss"},
		{Sex: "male", Age: 200, HeightCm: 50, WeightKg: 300, ActivityLevel: "sedentary", Goal: "weight_loss"},
		{WeightKg: 1},
	}
	for _, p := range profiles {
		if g := service.ComputeGoals(p); g.Macros.CarbsG < 0 {
			t.Fatalf("negative carbs for %+v: %+v", p, g.Macros)
		}
	}
}

func TestActivityMultiplier(t *testing.T) {
	t.Parallel()

	cases := map[string]float64{
		"sedentary":   1.2,
		"Very_Active": 1.725,
		"extra":       1.9,
		"moderate":    1.55,
		"unknown":     1.55,
	}
	for level, want := range cases {
		if got := service.ActivityMultiplier(level); got != want {
			t.Fatalf("ActivityMultiplier(%q) = %v, want %v", level, got, want)
		}
	}
}
