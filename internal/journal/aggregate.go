package journal

import (
	"math"

	"github.com/franckalain/mealcoach/internal/models"
)

// Calories per gram of each macronutrient
const (
	kcalPerGramProtein = 4
	kcalPerGramFat     = 9
	kcalPerGramCarbs   = 4
)

// Aggregate totals a day's meals. Evaluation rows are skipped and values that
// are not finite count as 0, so historical rows of any shape never fail.
func Aggregate(records []models.MealRecord) models.DayAggregate {
	agg := models.DayAggregate{Kinds: map[models.MealKind]bool{}}
	for _, r := range records {
		if r.IsEvaluation() {
			continue
		}
		agg.TotalCalories += finite(r.Calories)
		agg.TotalProtein += finite(r.Protein)
		agg.TotalFat += finite(r.Fat)
		agg.TotalCarbs += finite(r.Carbs)
		agg.TotalPurine += finite(r.Purine)
		agg.MealCount++
		if r.Kind != "" {
			agg.Kinds[r.Kind] = true
		}
	}
	return agg
}

// Ratio splits the day's macro calories into protein, fat and carbohydrate
// shares. ok is false when there is nothing to split.
func Ratio(agg models.DayAggregate) (ratio models.MacroRatio, ok bool) {
	protein := agg.TotalProtein * kcalPerGramProtein
	fat := agg.TotalFat * kcalPerGramFat
	carbs := agg.TotalCarbs * kcalPerGramCarbs

	total := protein + fat + carbs
	if total <= 0 {
		return models.MacroRatio{}, false
	}
	return models.MacroRatio{
		Protein: protein / total,
		Fat:     fat / total,
		Carbs:   carbs / total,
	}, true
}

// MainMealsLogged reports whether breakfast, lunch and dinner are all present,
// the condition for evaluating a day automatically.
func MainMealsLogged(agg models.DayAggregate) bool {
	return agg.Has(models.Breakfast, models.Lunch, models.Dinner)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
