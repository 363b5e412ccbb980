package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/franckalain/mealcoach/internal/models"
)

// Estimate is the validated nutrition estimate for one meal
type Estimate struct {
	Menu     string
	Calories float64
	Protein  float64
	Fat      float64
	Carbs    float64
	Purine   float64
	Score    int
	Advice   string
}

// Verdict is the validated summary of a whole day
type Verdict struct {
	Score  int
	Advice string
}

var mealNumberFields = []string{"calories", "protein", "fat", "carbs"}

// ExtractMeal pulls a meal estimate out of a free-form model reply. The reply
// may carry prose and markdown fences around a single JSON object.
func ExtractMeal(raw string) (*Estimate, error) {
	obj, err := payload(raw)
	if err != nil {
		return nil, err
	}

	menu, err := requireString(obj, "menu")
	if err != nil {
		return nil, err
	}
	advice, err := requireString(obj, "advice")
	if err != nil {
		return nil, err
	}

	nums := make(map[string]float64, len(mealNumberFields))
	for _, field := range mealNumberFields {
		v, err := requireNumber(obj, field)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, &models.ValidationError{Field: field, Reason: "must not be negative"}
		}
		nums[field] = v
	}

	// purine is optional and some replies spell it "purines"
	var purine float64
	for _, key := range []string{"purine", "purines"} {
		if _, ok := obj[key]; !ok {
			continue
		}
		v, err := requireNumber(obj, key)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, &models.ValidationError{Field: key, Reason: "must not be negative"}
		}
		purine = v
		break
	}

	score, err := requireScore(obj)
	if err != nil {
		return nil, err
	}

	return &Estimate{
		Menu:     menu,
		Calories: nums["calories"],
		Protein:  nums["protein"],
		Fat:      nums["fat"],
		Carbs:    nums["carbs"],
		Purine:   purine,
		Score:    score,
		Advice:   advice,
	}, nil
}

// ExtractEvaluation pulls a {score, advice} day verdict out of a model reply
func ExtractEvaluation(raw string) (*Verdict, error) {
	obj, err := payload(raw)
	if err != nil {
		return nil, err
	}
	score, err := requireScore(obj)
	if err != nil {
		return nil, err
	}
	advice, err := requireString(obj, "advice")
	if err != nil {
		return nil, err
	}
	return &Verdict{Score: score, Advice: advice}, nil
}

// payload decodes the span between the first '{' and the last '}'. The span
// must hold exactly one object.
func payload(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &models.ParseError{Reason: "no structured payload"}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw[start : end+1])))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, &models.ParseError{Reason: "malformed structured payload", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &models.ParseError{Reason: "malformed structured payload", Err: errors.New("more than one object")}
	}
	return obj, nil
}

func requireString(obj map[string]any, key string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", &models.ValidationError{Field: key, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &models.ValidationError{Field: key, Reason: fmt.Sprintf("expected text, got %T", v)}
	}
	return strings.TrimSpace(s), nil
}

// requireNumber accepts JSON numbers and numeric strings. Anything else is a
// parse failure: an unreadable estimate must never be logged as zero.
func requireNumber(obj map[string]any, key string) (float64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, &models.ValidationError{Field: key, Reason: "missing"}
	}

	var text string
	switch n := v.(type) {
	case json.Number:
		text = n.String()
	case string:
		text = strings.TrimSpace(n)
	default:
		return 0, &models.ParseError{Reason: fmt.Sprintf("field %q is not a number (%T)", key, v)}
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &models.ParseError{Reason: fmt.Sprintf("field %q is not a number: %q", key, text), Err: err}
	}
	return f, nil
}

func requireScore(obj map[string]any) (int, error) {
	v, err := requireNumber(obj, "score")
	if err != nil {
		return 0, err
	}
	score := int(math.Round(v))
	if score < 0 || score > 100 {
		return 0, &models.ValidationError{Field: "score", Reason: fmt.Sprintf("%d is outside 0..100", score)}
	}
	return score, nil
}
