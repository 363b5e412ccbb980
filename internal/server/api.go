package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/franckalain/mealcoach/internal/journal"
	"github.com/franckalain/mealcoach/internal/models"
	"github.com/franckalain/mealcoach/internal/session"
	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Password string `json:"password"`
}

// mealRequest carries an optional photo as base64, with or without a data URL prefix
type mealRequest struct {
	Kind  string `json:"kind"`
	Note  string `json:"note"`
	Image string `json:"image"`
}

type mealResponse struct {
	*journal.MealResult
	EvaluationError string `json:"evaluation_error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (r mealRequest) input() (journal.MealInput, error) {
	in := journal.MealInput{Kind: models.MealKind(r.Kind), Note: r.Note}
	if r.Image == "" {
		return in, nil
	}
	data := r.Image
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}
	img, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return in, &models.ValidationError{Field: "image", Reason: "invalid base64"}
	}
	in.Image = img
	return in, nil
}

func newMealResponse(res *journal.MealResult) mealResponse {
	out := mealResponse{MealResult: res}
	if res.EvaluationErr != nil {
		out.EvaluationError = res.EvaluationErr.Error()
	}
	return out
}

// errorStatus maps journal errors onto HTTP statuses and stable codes
func errorStatus(err error) (int, string) {
	var perr *models.ParseError
	var verr *models.ValidationError
	switch {
	case errors.Is(err, models.ErrSession):
		return http.StatusUnauthorized, "session"
	case errors.As(err, &perr):
		return http.StatusUnprocessableEntity, "unusable_reply"
	case errors.As(err, &verr):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, journal.ErrNoMeals):
		return http.StatusNotFound, "no_meals"
	case errors.Is(err, models.ErrInference) && errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "inference_timeout"
	case errors.Is(err, models.ErrInference):
		return http.StatusBadGateway, "inference"
	case errors.Is(err, models.ErrIO):
		return http.StatusServiceUnavailable, "store"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(c echo.Context, err error) error {
	status, code := errorStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		loggerFrom(c).Error().Err(err).Str("code", code).Msg("Request failed")
		msg = http.StatusText(status)
	}
	return c.JSON(status, errorResponse{Error: msg, Code: code})
}

// requireSession resolves the bearer token into a session for the handlers below it
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		sess, err := s.sessions.Verify(strings.TrimSpace(token))
		if err != nil {
			return s.fail(c, err)
		}
		c.Set("session", sess)
		return next(c)
	}
}

func sessionFrom(c echo.Context) *session.Session {
	sess, _ := c.Get("session").(*session.Session)
	return sess
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, &models.ValidationError{Field: "body", Reason: "expected JSON"})
	}
	sess, err := s.sessions.Login(req.Password)
	if err != nil {
		loggerFrom(c).Warn().Msg("Rejected login")
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleRecordMeal(c echo.Context) error {
	var req mealRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, &models.ValidationError{Field: "body", Reason: "expected JSON"})
	}
	in, err := req.input()
	if err != nil {
		return s.fail(c, err)
	}

	res, err := s.journal.RecordMeal(c.Request().Context(), sessionFrom(c), in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, newMealResponse(res))
}

func (s *Server) dateParam(c echo.Context) string {
	if date := c.Param("date"); date != "today" {
		return date
	}
	return s.journal.Today()
}

func (s *Server) handleGetDay(c echo.Context) error {
	view, err := s.journal.GetDay(c.Request().Context(), sessionFrom(c), s.dateParam(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) handleEvaluateDay(c echo.Context) error {
	eval, err := s.journal.EvaluateDay(c.Request().Context(), sessionFrom(c), s.dateParam(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, eval)
}
