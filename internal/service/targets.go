package service

import (
	"math"
	"strings"

	"github.com/saadjs/nutrisync/internal/model"
)

const (
	SexMale   = "male"
	SexFemale = "female"

	ActivitySedentary        = "sedentary"
	ActivityLightlyActive    = "lightly_active"
	ActivityModeratelyActive = "moderately_active"
	ActivityVeryActive       = "very_active"
	ActivityAthlete          = "athlete"

	GoalWeightLoss  = "weight_loss"
	GoalMaintenance = "maintenance"
	GoalWeightGain  = "weight_gain"
)

const (
	defaultWeightKg = 70
	defaultHeightCm = 170
	defaultAgeYears = 25

	defaultActivityMultiplier = 1.55

	proteinGPerKg = 1.6
	fatGPerKg     = 0.8
	kcalPerGProt  = 4
	kcalPerGCarb  = 4
	kcalPerGFat   = 9

	waterMlPerKg = 35
	sleepTargetH = 8
	lossFactor   = 0.85
	gainFactor   = 1.1
	maleOffset   = 5
	femaleOffset = -161
)

var activityMultipliers = map[string]float64{
	ActivitySedentary:        1.2,
	ActivityLightlyActive:    1.375,
	ActivityModeratelyActive: 1.55,
	ActivityVeryActive:       1.725,
	ActivityAthlete:          1.9,
}

// Short names accepted by the analysis service's profile payloads.
var activityAliases = map[string]string{
	"light":    ActivityLightlyActive,
	"moderate": ActivityModeratelyActive,
	"very":     ActivityVeryActive,
	"extra":    ActivityAthlete,
}

type MacroGoals struct {
	ProteinG int `json:"protein_g"`
	CarbsG   int `json:"carbs_g"`
	FatG     int `json:"fat_g"`
}

type Goals struct {
	BMR                 int           `json:"bmr"`
	TDEE                int           `json:"tdee"`
	MaintenanceCalories int           `json:"maintenance_calories"`
	Macros              MacroGoals    `json:"macro_goals"`
	WaterTargetMl       int           `json:"water_target_ml"`
	SleepTargetH        float64       `json:"sleep_target_h"`
	Profile             model.Profile `json:"profile_used"`
}

// NormalizeProfile replaces missing or invalid fields with defaults
// (male, 70 kg, 170 cm, 25 y, moderately_active, maintenance).
func NormalizeProfile(p model.Profile) model.Profile {
	p.Sex = normalizeSex(p.Sex)
	p.WeightKg = positiveOr(p.WeightKg, defaultWeightKg)
	p.HeightCm = positiveOr(p.HeightCm, defaultHeightCm)
	p.Age = positiveOr(p.Age, defaultAgeYears)
	p.ActivityLevel = NormalizeActivityLevel(p.ActivityLevel)
	p.Goal = NormalizeGoal(p.Goal)
	return p
}

// ComputeGoals never fails. Values are rounded only when written to the
// output fields.
func ComputeGoals(profile model.Profile) Goals {
	p := NormalizeProfile(profile)

	bmr := 10*p.WeightKg + 6.25*p.HeightCm - 5*p.Age
	if p.Sex == SexFemale {
		bmr += femaleOffset
	} else {
		bmr += maleOffset
	}

	maintenance := bmr * activityMultipliers[p.ActivityLevel]
	tdee := maintenance
	switch p.Goal {
	case GoalWeightLoss:
		tdee *= lossFactor
	case GoalWeightGain:
		tdee *= gainFactor
	}

	protein := p.WeightKg * proteinGPerKg
	fat := p.WeightKg * fatGPerKg
	remaining := tdee - protein*kcalPerGProt - fat*kcalPerGFat
	carbs := math.Max(0, remaining) / kcalPerGCarb

	return Goals{
		BMR:                 roundInt(bmr),
		TDEE:                roundInt(tdee),
		MaintenanceCalories: roundInt(maintenance),
		Macros: MacroGoals{
			ProteinG: roundInt(protein),
			CarbsG:   roundInt(carbs),
			FatG:     roundInt(fat),
		},
		WaterTargetMl: roundInt(p.WeightKg * waterMlPerKg),
		SleepTargetH:  sleepTargetH,
		Profile:       p,
	}
}

func ActivityMultiplier(level string) float64 {
	if m, ok := activityMultipliers[NormalizeActivityLevel(level)]; ok {
		return m
	}
	return defaultActivityMultiplier
}

// NormalizeActivityLevel maps aliases onto the five tiers; anything unknown
// becomes moderately_active.
func NormalizeActivityLevel(level string) string {
	key := strings.ToLower(strings.TrimSpace(level))
	if alias, ok := activityAliases[key]; ok {
		key = alias
	}
	if _, ok := activityMultipliers[key]; ok {
		return key
	}
	return ActivityModeratelyActive
}

func NormalizeGoal(goal string) string {
	switch g := strings.ToLower(strings.TrimSpace(goal)); g {
	case GoalWeightLoss, GoalWeightGain, GoalMaintenance:
		return g
	}
	return GoalMaintenance
}

func normalizeSex(sex string) string {
	s := strings.ToLower(strings.TrimSpace(sex))
	if s == SexFemale || s == "f" {
		return SexFemale
	}
	return SexMale
}

func positiveOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fallback
	}
	return v
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
