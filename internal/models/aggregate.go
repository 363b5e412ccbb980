package models

// DayAggregate holds the derived totals for one calendar day
type DayAggregate struct {
	TotalCalories float64           `json:"total_calories"`
	TotalProtein  float64           `json:"total_protein"`
	TotalFat      float64           `json:"total_fat"`
	TotalCarbs    float64           `json:"total_carbs"`
	TotalPurine   float64           `json:"total_purine"`
	MealCount     int               `json:"meal_count"`
	Kinds         map[MealKind]bool `json:"meal_kinds"`
}

// Has reports whether every given kind was logged
func (a DayAggregate) Has(kinds ...MealKind) bool {
	for _, k := range kinds {
		if !a.Kinds[k] {
			return false
		}
	}
	return true
}

// MacroRatio is the share of calories from protein, fat and carbohydrate (PFC)
type MacroRatio struct {
	Protein float64 `json:"protein"`
	Fat     float64 `json:"fat"`
	Carbs   float64 `json:"carbs"`
}
