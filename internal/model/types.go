package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type Category string

const (
	CategoryMeal     Category = "meal"
	CategoryWater    Category = "water"
	CategoryActivity Category = "activity"
	CategorySleep    Category = "sleep"
)

func ParseCategory(value string) (Category, error) {
	switch c := Category(value); c {
	case CategoryMeal, CategoryWater, CategoryActivity, CategorySleep:
		return c, nil
	}
	return "", fmt.Errorf("invalid category %q (expected meal, water, activity, or sleep)", value)
}

type Provenance string

const (
	ProvenanceManual   Provenance = "manual"
	ProvenanceAnalyzed Provenance = "analyzed"
	ProvenanceUnknown  Provenance = "unknown"
)

// LogEntry is one logged event. Date is fixed at creation from Timestamp in
// the user's calendar and is never derived again.
type LogEntry struct {
	ID             string     `json:"id"`
	Category       Category   `json:"category"`
	Item           string     `json:"item"`
	Quantity       float64    `json:"quantity"`
	Timestamp      int64      `json:"timestamp"`
	Date           string     `json:"date"`
	Calories       *float64   `json:"calories,omitempty"`
	Macros         *Macros    `json:"macros,omitempty"`
	ManualOverride bool       `json:"manual_override"`
	Provenance     Provenance `json:"provenance"`
	Notes          string     `json:"notes,omitempty"`
}

func (e LogEntry) IsMeal() bool {
	return e.Category == CategoryMeal
}

func (e LogEntry) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Macros holds grams of the three macronutrients plus any other numeric
// nutrient the analysis service reported, keyed as received.
type Macros struct {
	ProteinG float64
	CarbsG   float64
	FatG     float64
	Other    map[string]float64
}

const (
	macroKeyProtein = "protein_g"
	macroKeyCarbs   = "total_carbohydrate_g"
	macroKeyFat     = "total_fat_g"

	// NutrientCaloriesKcal is the energy key the analysis service uses inside macros.
	NutrientCaloriesKcal = "calories_kcal"
)

func (m Macros) MarshalJSON() ([]byte, error) {
	out := make(map[string]float64, len(m.Other)+3)
	for k, v := range m.Other {
		out[k] = v
	}
	out[macroKeyProtein] = m.ProteinG
	out[macroKeyCarbs] = m.CarbsG
	out[macroKeyFat] = m.FatG
	return json.Marshal(out)
}

func (m *Macros) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode macros: %w", err)
	}
	*m = Macros{}
	for k, v := range raw {
		f, ok := v.(float64)
		if !ok {
			continue
		}
		switch k {
		case macroKeyProtein:
			m.ProteinG = f
		case macroKeyCarbs:
			m.CarbsG = f
		case macroKeyFat:
			m.FatG = f
		default:
			if m.Other == nil {
				m.Other = map[string]float64{}
			}
			m.Other[k] = f
		}
	}
	return nil
}

type Profile struct {
	Sex           string
	Age           float64
	HeightCm      float64
	WeightKg      float64
	ActivityLevel string
	Goal          string
	UpdatedAt     time.Time
}

type SyncRun struct {
	ID         int64
	Day        string
	Mode       string
	Status     string
	Attempts   int
	Submitted  int
	Matched    int
	Dropped    int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
