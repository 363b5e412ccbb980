package ml

import (
	"fmt"
	"strings"

	"github.com/franckalain/mealcoach/internal/models"
)

const mealSchema = `Respond with a single JSON object and nothing else:
{
	"menu": "string, short name of the dish",
	"calories": number (kcal),
	"protein": number (grams),
	"fat": number (grams),
	"carbs": number (grams),
	"purine": number (mg),
	"score": integer from 0 to 100,
	"advice": "string, one or two sentences"
}`

const daySchema = `Respond with a single JSON object and nothing else:
{
	"score": integer from 0 to 100 for the whole day,
	"advice": "string, a short summary and one concrete suggestion for tomorrow"
}`

// PromptBuilder assembles model requests for a configured persona
type PromptBuilder struct {
	persona Persona
}

// NewPromptBuilder creates a builder; unknown personas fall back to the default
func NewPromptBuilder(p Persona) *PromptBuilder {
	if _, ok := personas[p]; !ok {
		p = DefaultPersona
	}
	return &PromptBuilder{persona: p}
}

// Persona returns the preset in use
func (b *PromptBuilder) Persona() Persona {
	return b.persona
}

func (b *PromptBuilder) system() string {
	text := personas[b.persona]
	return text.voice + "\n" + text.scoring
}

// MealPrompt builds the request that estimates nutrition for one meal. At
// least one of note or image should be set; the builder does not enforce it.
func (b *PromptBuilder) MealPrompt(kind models.MealKind, note string, image *Image) Request {
	var sb strings.Builder

	fmt.Fprintf(&sb, "The user is logging their %s.\n", strings.ToLower(string(kind)))
	if image != nil {
		sb.WriteString("Estimate the nutrition of the food shown in the attached photo.\n")
	}
	if note = strings.TrimSpace(note); note != "" {
		fmt.Fprintf(&sb, "The user's description: %q\n", note)
	}
	sb.WriteString("Estimate calories, protein, fat, carbohydrate and purine for the whole portion, ")
	sb.WriteString("then score the meal and give advice in your voice.\n\n")
	sb.WriteString(mealSchema)

	return Request{
		System: b.system(),
		Prompt: sb.String(),
		Image:  image,
	}
}

// DaySummaryPrompt builds the request that evaluates a whole day. Evaluation
// rows in meals are skipped.
func (b *PromptBuilder) DaySummaryPrompt(date string, meals []models.MealRecord, agg models.DayAggregate) Request {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Evaluate everything the user ate on %s.\n\nMeals in the order they were logged:\n", date)
	n := 0
	for _, m := range meals {
		if m.IsEvaluation() {
			continue
		}
		n++
		fmt.Fprintf(&sb, "%d. [%s %s] %s: %.0f kcal, protein %.1fg, fat %.1fg, carbs %.1fg, purine %.0fmg\n",
			n, m.Time, m.Kind, m.Menu, m.Calories, m.Protein, m.Fat, m.Carbs, m.Purine)
	}
	if n == 0 {
		sb.WriteString("(no meals logged)\n")
	}

	fmt.Fprintf(&sb, "\nDay totals: %.0f kcal, protein %.1fg, fat %.1fg, carbs %.1fg, purine %.0fmg over %d meals.\n",
		agg.TotalCalories, agg.TotalProtein, agg.TotalFat, agg.TotalCarbs, agg.TotalPurine, agg.MealCount)
	missing := []string{}
	for _, k := range []models.MealKind{models.Breakfast, models.Lunch, models.Dinner} {
		if !agg.Kinds[k] {
			missing = append(missing, strings.ToLower(string(k)))
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(&sb, "Not logged: %s.\n", strings.Join(missing, ", "))
	}
	sb.WriteString("\n")
	sb.WriteString(daySchema)

	return Request{
		System: b.system(),
		Prompt: sb.String(),
	}
}
