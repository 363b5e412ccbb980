package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/franckalain/mealcoach/internal/database"
	"github.com/franckalain/mealcoach/internal/journal"
	"github.com/franckalain/mealcoach/internal/ml"
	"github.com/franckalain/mealcoach/internal/models"
	"github.com/franckalain/mealcoach/internal/session"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const password = "onigiri"

type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (m *scriptedModel) Load(ctx context.Context) error { return nil }

func (m *scriptedModel) Generate(ctx context.Context, req ml.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func (m *scriptedModel) script(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = replies
}

func (m *scriptedModel) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type testServer struct {
	srv   *Server
	model *scriptedModel
	svc   *journal.Service
}

func newTestServer(t *testing.T) *testServer {
	store := database.NewRecordStore(database.NewMemoryTable(), time.Second, 0, 0)
	require.NoError(t, store.EnsureHeader(context.Background()))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	sessions, err := session.NewManager("test-secret", string(hash), time.Hour)
	require.NoError(t, err)

	model := &scriptedModel{}
	svc := journal.NewService(store, model, journal.Options{Location: time.UTC, InferenceTimeout: time.Second})
	return &testServer{
		srv:   New(svc, sessions, "", false),
		model: model,
		svc:   svc,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T) string {
	rec := ts.do(t, http.MethodPost, "/api/login", "", loginRequest{Password: password})
	require.Equal(t, http.StatusOK, rec.Code)

	var sess session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.Token)
	return sess.Token
}

const lunchReply = "```json\n{\"menu\": \"salmon bowl\", \"calories\": 650, \"protein\": 35, \"fat\": 18, \"carbs\": 80, \"score\": 78, \"advice\": \"Nice.\"}\n```"

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/login", "", loginRequest{Password: "sushi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/days/today", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/meals", "forged", mealRequest{Kind: "Lunch", Note: "soba"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "session", body.Code)
}

func TestRecordMealAndGetDay(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)
	ts.model.script(lunchReply)

	rec := ts.do(t, http.MethodPost, "/api/meals", token, mealRequest{Kind: "Lunch", Note: "salmon bowl"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var meal mealResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meal))
	require.NotNil(t, meal.MealResult)
	assert.Equal(t, "salmon bowl", meal.Record.Menu)
	assert.Equal(t, 650.0, meal.Record.Calories)

	rec = ts.do(t, http.MethodGet, "/api/days/today", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view journal.DayView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, ts.svc.Today(), view.Date)
	assert.Equal(t, 650.0, view.Aggregate.TotalCalories)
	assert.Len(t, view.Meals, 1)
	assert.Equal(t, journal.NoEvaluation, view.State)
}

func TestRecordMealErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rec := ts.do(t, http.MethodPost, "/api/meals", token, mealRequest{Kind: "Brunch", Note: "eggs"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/meals", token, mealRequest{Kind: "Lunch", Image: "%%%"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.model.script("I could not see any food.")
	rec = ts.do(t, http.MethodPost, "/api/meals", token, mealRequest{Kind: "Lunch", Note: "?"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	ts.model.fail(errors.New("quota exceeded"))
	rec = ts.do(t, http.MethodPost, "/api/meals", token, mealRequest{Kind: "Lunch", Note: "soba"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "inference", body.Code)
	assert.NotContains(t, body.Error, "quota")
}

func TestEvaluateDayEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rec := ts.do(t, http.MethodPost, "/api/days/today/evaluation", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.model.script(lunchReply, `{"score": 71, "advice": "Add vegetables."}`)
	rec = ts.do(t, http.MethodPost, "/api/meals", token, mealRequest{Kind: "Lunch", Note: "salmon bowl"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/days/today/evaluation", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var eval models.DailyEvaluation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eval))
	assert.Equal(t, 71, eval.Score)

	// skip policy: no further model call
	rec = ts.do(t, http.MethodPost, "/api/days/today/evaluation", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/days/not-a-date", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMealRequestDataURL(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	req := mealRequest{Kind: "Dinner", Image: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)}

	in, err := req.input()
	require.NoError(t, err)
	assert.Equal(t, jpeg, in.Image)
	assert.Equal(t, models.Dinner, in.Kind)
}

func dialWS(t *testing.T, ts *testServer) *websocket.Conn {
	srv := httptest.NewServer(ts.srv.Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wsReply struct {
	Type    string          `json:"type"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func roundTrip(t *testing.T, conn *websocket.Conn, msgType string, data any) wsReply {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": msgType, "data": data}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var reply wsReply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestWebSocketFlow(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts)

	reply := roundTrip(t, conn, "get_day", dayMessage{})
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "session", reply.Code)

	reply = roundTrip(t, conn, "login", loginMessage{Password: password})
	require.Equal(t, "session", reply.Type, reply.Message)

	ts.model.script(lunchReply)
	reply = roundTrip(t, conn, "record_meal", mealRequest{Kind: "Lunch", Note: "salmon bowl"})
	require.Equal(t, "meal_recorded", reply.Type, reply.Message)

	reply = roundTrip(t, conn, "get_day", dayMessage{Date: "today"})
	require.Equal(t, "day", reply.Type)
	var view journal.DayView
	require.NoError(t, json.Unmarshal(reply.Data, &view))
	assert.Equal(t, 650.0, view.Aggregate.TotalCalories)

	ts.model.script("no idea")
	reply = roundTrip(t, conn, "evaluate_day", dayMessage{})
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "unusable_reply", reply.Code)

	reply = roundTrip(t, conn, "scan", nil)
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "invalid_input", reply.Code)
}

func TestWebSocketLoginWithToken(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)
	conn := dialWS(t, ts)

	reply := roundTrip(t, conn, "login", loginMessage{Token: token})
	assert.Equal(t, "session", reply.Type)

	reply = roundTrip(t, conn, "login", loginMessage{Token: "garbage"})
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "session", reply.Code)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&models.SessionError{Reason: "x"}, http.StatusUnauthorized},
		{&models.ParseError{Reason: "x", Err: &models.ValidationError{Field: "score"}}, http.StatusUnprocessableEntity},
		{&models.ValidationError{Field: "date"}, http.StatusBadRequest},
		{journal.ErrNoMeals, http.StatusNotFound},
		{&models.InferenceError{Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{&models.InferenceError{Err: errors.New("boom")}, http.StatusBadGateway},
		{&models.IOError{Op: "append", Err: errors.New("disk")}, http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
