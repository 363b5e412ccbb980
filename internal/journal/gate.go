package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franckalain/mealcoach/internal/ml"
	"github.com/franckalain/mealcoach/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrNoMeals is returned when asked to evaluate a day with nothing logged
var ErrNoMeals = errors.New("no meals logged for this date")

// Store is the part of the record store the journal needs. ReadThrough
// bypasses any cache AllForDate may use.
type Store interface {
	Append(ctx context.Context, rec models.MealRecord) error
	AllForDate(ctx context.Context, date string) ([]models.MealRecord, error)
	ReadThrough(ctx context.Context, date string) ([]models.MealRecord, error)
}

// Policy decides what happens when a day that already has an evaluation is
// evaluated again. Under every policy the latest evaluation row is the only
// live one, so a date never ends up with competing verdicts.
type Policy string

const (
	// PolicySkip returns the existing evaluation untouched
	PolicySkip Policy = "skip"
	// PolicyRefresh recomputes only if meals were logged after the latest evaluation
	PolicyRefresh Policy = "refresh"
	// PolicyReplace always recomputes; the new row supersedes the old one
	PolicyReplace Policy = "replace"
)

// ParsePolicy validates a configured policy name. Empty selects PolicySkip.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicySkip, nil
	case PolicySkip, PolicyRefresh, PolicyReplace:
		return p, nil
	default:
		return "", fmt.Errorf("unknown evaluation policy %q", s)
	}
}

// State is whether a date currently has a live evaluation
type State string

const (
	NoEvaluation State = "no_evaluation"
	Evaluated    State = "evaluated"
)

// latestEvaluation finds the most recently appended evaluation row. idx is -1
// when there is none.
func latestEvaluation(records []models.MealRecord) (eval *models.DailyEvaluation, idx int) {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].IsEvaluation() {
			e := models.EvaluationFromRecord(records[i])
			return &e, i
		}
	}
	return nil, -1
}

// StateOf derives the evaluation state from a day's rows
func StateOf(records []models.MealRecord) State {
	if e, _ := latestEvaluation(records); e != nil {
		return Evaluated
	}
	return NoEvaluation
}

// Gate produces daily evaluations, at most one live per date
type Gate struct {
	store            Store
	model            ml.Model
	prompts          *ml.PromptBuilder
	policy           Policy
	inferenceTimeout time.Duration
	clock            func() time.Time
}

// NewGate creates a gate. clock must return local time for the journal.
func NewGate(store Store, model ml.Model, prompts *ml.PromptBuilder, policy Policy, inferenceTimeout time.Duration, clock func() time.Time) *Gate {
	if policy == "" {
		policy = PolicySkip
	}
	return &Gate{
		store:            store,
		model:            model,
		prompts:          prompts,
		policy:           policy,
		inferenceTimeout: inferenceTimeout,
		clock:            clock,
	}
}

// Evaluate returns the live evaluation for date, computing and appending a
// new one when the policy calls for it. fresh reports whether a new row was
// written. On failure nothing is appended and the state is unchanged.
func (g *Gate) Evaluate(ctx context.Context, date string) (eval *models.DailyEvaluation, fresh bool, err error) {
	records, err := g.store.ReadThrough(ctx, date)
	if err != nil {
		return nil, false, err
	}
	return g.evaluate(ctx, date, records)
}

func (g *Gate) evaluate(ctx context.Context, date string, records []models.MealRecord) (*models.DailyEvaluation, bool, error) {
	if current, idx := latestEvaluation(records); current != nil && !g.stale(records, idx) {
		log.Debug().Str("date", date).Str("policy", string(g.policy)).Msg("Reusing existing daily evaluation")
		return current, false, nil
	}

	agg := Aggregate(records)
	if agg.MealCount == 0 {
		return nil, false, ErrNoMeals
	}

	req := g.prompts.DaySummaryPrompt(date, records, agg)
	raw, err := generate(ctx, g.model, req, g.inferenceTimeout)
	if err != nil {
		return nil, false, err
	}

	verdict, err := ml.ExtractEvaluation(raw)
	if err != nil {
		log.Warn().Err(err).Str("date", date).Msg("Unusable daily evaluation reply")
		return nil, false, &models.ParseError{Reason: "unusable daily evaluation", Err: err}
	}

	eval := models.DailyEvaluation{
		Date:   date,
		Time:   g.clock().Format(TimeLayout),
		Score:  verdict.Score,
		Advice: verdict.Advice,
	}
	if err := g.store.Append(ctx, eval.Record()); err != nil {
		return nil, false, err
	}

	log.Info().Str("date", date).Int("score", eval.Score).Msg("Recorded daily evaluation")
	return &eval, true, nil
}

// stale reports whether the evaluation at idx should be recomputed
func (g *Gate) stale(records []models.MealRecord, idx int) bool {
	switch g.policy {
	case PolicyReplace:
		return true
	case PolicyRefresh:
		for _, r := range records[idx+1:] {
			if !r.IsEvaluation() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// generate calls the model under its own deadline and wraps failures
func generate(ctx context.Context, model ml.Model, req ml.Request, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	raw, err := model.Generate(ctx, req)
	if err != nil {
		return "", &models.InferenceError{Err: err}
	}
	return raw, nil
}
