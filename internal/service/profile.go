package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/saadjs/nutrisync/internal/model"
)

type SetProfileInput struct {
	Sex           string
	Age           float64
	HeightCm      float64
	WeightKg      float64
	ActivityLevel string
	Goal          string
}

// SaveProfile stores the single local profile. Numeric fields must be
// positive; enumerations are validated strictly here even though the target
// calculator tolerates anything.
func SaveProfile(db *sql.DB, in SetProfileInput) error {
	sex := strings.ToLower(strings.TrimSpace(in.Sex))
	if sex != SexMale && sex != SexFemale {
		return fmt.Errorf("invalid sex %q (expected male or female)", in.Sex)
	}
	if err := validatePositiveFloat("age", in.Age); err != nil {
		return err
	}
	if err := validatePositiveFloat("height", in.HeightCm); err != nil {
		return err
	}
	if err := validatePositiveFloat("weight", in.WeightKg); err != nil {
		return err
	}
	activity := strings.ToLower(strings.TrimSpace(in.ActivityLevel))
	if alias, ok := activityAliases[activity]; ok {
		activity = alias
	}
	if _, ok := activityMultipliers[activity]; !ok {
		return fmt.Errorf("invalid activity level %q", in.ActivityLevel)
	}
	goal := strings.ToLower(strings.TrimSpace(in.Goal))
	if goal != GoalWeightLoss && goal != GoalMaintenance && goal != GoalWeightGain {
		return fmt.Errorf("invalid goal %q (expected weight_loss, maintenance, or weight_gain)", in.Goal)
	}

	_, err := db.Exec(`
INSERT INTO profile(id, sex, age, height_cm, weight_kg, activity_level, goal, updated_at)
VALUES(1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  sex=excluded.sex,
  age=excluded.age,
  height_cm=excluded.height_cm,
  weight_kg=excluded.weight_kg,
  activity_level=excluded.activity_level,
  goal=excluded.goal,
  updated_at=excluded.updated_at
`, sex, in.Age, in.HeightCm, in.WeightKg, activity, goal)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// LoadProfile returns nil when no profile has been saved.
func LoadProfile(db *sql.DB) (*model.Profile, error) {
	var p model.Profile
	err := db.QueryRow(`
SELECT sex, age, height_cm, weight_kg, activity_level, goal, updated_at FROM profile WHERE id = 1
`).Scan(&p.Sex, &p.Age, &p.HeightCm, &p.WeightKg, &p.ActivityLevel, &p.Goal, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &p, nil
}

// CurrentGoals computes targets from the stored profile, or from defaults
// when none exists.
func CurrentGoals(db *sql.DB) (Goals, error) {
	p, err := LoadProfile(db)
	if err != nil {
		return Goals{}, err
	}
	if p == nil {
		return ComputeGoals(model.Profile{}), nil
	}
	return ComputeGoals(*p), nil
}
