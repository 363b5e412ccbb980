package models

import (
	"fmt"
	"strings"
)

// MealKind identifies the eating occasion a record belongs to
type MealKind string

const (
	Breakfast MealKind = "Breakfast"
	Lunch     MealKind = "Lunch"
	Dinner    MealKind = "Dinner"
	Snack     MealKind = "Snack"

	// KindDailyEvaluation tags rows that hold a day's verdict rather than a meal
	KindDailyEvaluation MealKind = "DailyEvaluation"
)

// MealKinds lists the kinds a user can log, in display order
var MealKinds = []MealKind{Breakfast, Lunch, Dinner, Snack}

// ParseMealKind accepts a kind name case-insensitively
func ParseMealKind(s string) (MealKind, error) {
	for _, k := range MealKinds {
		if strings.EqualFold(strings.TrimSpace(s), string(k)) {
			return k, nil
		}
	}
	return "", &ValidationError{Field: "meal_kind", Reason: fmt.Sprintf("unknown meal kind %q", s)}
}

// MealRecord represents one logged eating event
type MealRecord struct {
	Date     string   `json:"date"` // 2006-01-02
	Time     string   `json:"time"` // 15:04
	Kind     MealKind `json:"meal_kind"`
	Menu     string   `json:"menu"`
	Calories float64  `json:"calories"` // kcal
	Protein  float64  `json:"protein"`  // grams
	Fat      float64  `json:"fat"`      // grams
	Carbs    float64  `json:"carbs"`    // grams
	Purine   float64  `json:"purine"`   // mg
	Advice   string   `json:"advice"`
	Score    int      `json:"score"`
}

// IsEvaluation reports whether the record is a daily evaluation row
func (r MealRecord) IsEvaluation() bool {
	return r.Kind == KindDailyEvaluation
}

// DailyEvaluation is the derived verdict for one calendar day
type DailyEvaluation struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Score  int    `json:"score"`
	Advice string `json:"advice"`
}

// Record converts the evaluation into its stored row shape
func (e DailyEvaluation) Record() MealRecord {
	return MealRecord{
		Date:   e.Date,
		Time:   e.Time,
		Kind:   KindDailyEvaluation,
		Menu:   EvaluationLabel,
		Advice: e.Advice,
		Score:  e.Score,
	}
}

// EvaluationFromRecord reads an evaluation back out of a stored row
func EvaluationFromRecord(r MealRecord) DailyEvaluation {
	return DailyEvaluation{
		Date:   r.Date,
		Time:   r.Time,
		Score:  r.Score,
		Advice: r.Advice,
	}
}
