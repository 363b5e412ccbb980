// Package journal is the meal journal core: logging meals through the model,
// summarizing days and producing daily evaluations.
package journal

import (
	"context"
	"strings"
	"time"

	"github.com/franckalain/mealcoach/internal/ml"
	"github.com/franckalain/mealcoach/internal/models"
	"github.com/franckalain/mealcoach/internal/session"
	"github.com/rs/zerolog/log"
)

// Layouts of the date and time columns
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Options configures a Service
type Options struct {
	Persona          ml.Persona
	Policy           Policy
	AutoEvaluate     bool
	Location         *time.Location
	InferenceTimeout time.Duration
}

// MealInput is what the user submits for one meal. Note, Image or both must be set.
type MealInput struct {
	Kind  models.MealKind
	Note  string
	Image []byte
}

// MealResult is the outcome of RecordMeal. When the meal completed the day
// and automatic evaluation is on, Evaluation holds the day's verdict, or
// EvaluationErr why it could not be produced.
type MealResult struct {
	Record        models.MealRecord       `json:"record"`
	Evaluation    *models.DailyEvaluation `json:"evaluation,omitempty"`
	EvaluationErr error                   `json:"-"`
}

// DayView is everything the front-end shows for one date
type DayView struct {
	Date       string                  `json:"date"`
	Meals      []models.MealRecord     `json:"meals"`
	Aggregate  models.DayAggregate     `json:"aggregate"`
	Ratio      *models.MacroRatio      `json:"ratio,omitempty"`
	State      State                   `json:"state"`
	Evaluation *models.DailyEvaluation `json:"evaluation,omitempty"`
}

// Service exposes the journal operations to transports
type Service struct {
	store            Store
	model            ml.Model
	prompts          *ml.PromptBuilder
	gate             *Gate
	autoEvaluate     bool
	loc              *time.Location
	inferenceTimeout time.Duration
	now              func() time.Time
}

// NewService wires the journal together
func NewService(store Store, model ml.Model, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		store:            store,
		model:            model,
		prompts:          ml.NewPromptBuilder(opts.Persona),
		autoEvaluate:     opts.AutoEvaluate,
		loc:              loc,
		inferenceTimeout: opts.InferenceTimeout,
		now:              time.Now,
	}
	s.gate = NewGate(store, model, s.prompts, opts.Policy, opts.InferenceTimeout, s.clock)
	return s
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// Today returns the current date in the journal's time zone
func (s *Service) Today() string {
	return s.clock().Format(DateLayout)
}

// RecordMeal asks the model about one meal and appends the result. Parse,
// inference and store failures leave the journal untouched.
func (s *Service) RecordMeal(ctx context.Context, sess *session.Session, in MealInput) (*MealResult, error) {
	if err := sess.Check(s.now()); err != nil {
		return nil, err
	}
	kind, err := models.ParseMealKind(string(in.Kind))
	if err != nil {
		return nil, err
	}
	note := strings.TrimSpace(in.Note)
	if note == "" && len(in.Image) == 0 {
		return nil, &models.ValidationError{Field: "note", Reason: "a note or a photo is required"}
	}

	var img *ml.Image
	if len(in.Image) > 0 {
		img, err = ml.NewImage(in.Image)
		if err != nil {
			return nil, &models.ValidationError{Field: "image", Reason: err.Error()}
		}
	}

	raw, err := generate(ctx, s.model, s.prompts.MealPrompt(kind, note, img), s.inferenceTimeout)
	if err != nil {
		log.Error().Err(err).Str("meal_kind", string(kind)).Msg("Meal analysis failed")
		return nil, err
	}

	est, err := ml.ExtractMeal(raw)
	if err != nil {
		log.Warn().Err(err).Str("meal_kind", string(kind)).Msg("Unusable meal analysis reply")
		return nil, &models.ParseError{Reason: "unusable meal analysis", Err: err}
	}

	now := s.clock()
	rec := models.MealRecord{
		Date:     now.Format(DateLayout),
		Time:     now.Format(TimeLayout),
		Kind:     kind,
		Menu:     est.Menu,
		Calories: est.Calories,
		Protein:  est.Protein,
		Fat:      est.Fat,
		Carbs:    est.Carbs,
		Purine:   est.Purine,
		Advice:   est.Advice,
		Score:    est.Score,
	}
	if err := s.store.Append(ctx, rec); err != nil {
		log.Error().Err(err).Str("date", rec.Date).Msg("Failed to append meal")
		return nil, err
	}
	log.Info().Str("date", rec.Date).Str("meal_kind", string(kind)).Float64("calories", rec.Calories).Msg("Recorded meal")

	result := &MealResult{Record: rec}
	if s.autoEvaluate {
		result.Evaluation, result.EvaluationErr = s.autoEvaluateDay(ctx, rec.Date)
	}
	return result, nil
}

// autoEvaluateDay evaluates date once breakfast, lunch and dinner are logged.
// Failures are reported to the caller but never undo the meal.
func (s *Service) autoEvaluateDay(ctx context.Context, date string) (*models.DailyEvaluation, error) {
	records, err := s.store.ReadThrough(ctx, date)
	if err != nil {
		log.Warn().Err(err).Str("date", date).Msg("Skipping automatic evaluation")
		return nil, err
	}
	if !MainMealsLogged(Aggregate(records)) {
		return nil, nil
	}

	eval, _, err := s.gate.evaluate(ctx, date, records)
	if err != nil {
		log.Warn().Err(err).Str("date", date).Msg("Automatic evaluation failed")
		return nil, err
	}
	return eval, nil
}

// GetDay returns a date's meals, totals, macro ratio and live evaluation
func (s *Service) GetDay(ctx context.Context, sess *session.Session, date string) (*DayView, error) {
	if err := sess.Check(s.now()); err != nil {
		return nil, err
	}
	if err := validDate(date); err != nil {
		return nil, err
	}

	records, err := s.store.AllForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	view := &DayView{
		Date:      date,
		Meals:     []models.MealRecord{},
		Aggregate: Aggregate(records),
		State:     StateOf(records),
	}
	for _, r := range records {
		if !r.IsEvaluation() {
			view.Meals = append(view.Meals, r)
		}
	}
	if ratio, ok := Ratio(view.Aggregate); ok {
		view.Ratio = &ratio
	}
	view.Evaluation, _ = latestEvaluation(records)
	return view, nil
}

// EvaluateDay produces or returns the date's live evaluation according to
// the configured policy.
func (s *Service) EvaluateDay(ctx context.Context, sess *session.Session, date string) (*models.DailyEvaluation, error) {
	if err := sess.Check(s.now()); err != nil {
		return nil, err
	}
	if err := validDate(date); err != nil {
		return nil, err
	}

	eval, _, err := s.gate.Evaluate(ctx, date)
	return eval, err
}

func validDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return &models.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	return nil
}
