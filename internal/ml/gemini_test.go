package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiModel {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := NewGeminiModel(GeminiConfig{APIKey: "test-key", ModelName: "gemini-test", BaseURL: srv.URL}, srv.Client())
	m.backoff = time.Millisecond
	return m
}

func TestGeminiGenerate(t *testing.T) {
	m := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)

		var payload geminiPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.NotNil(t, payload.SystemInstruction)
		assert.Equal(t, "be nice", payload.SystemInstruction.Parts[0].Text)
		require.Len(t, payload.Contents[0].Parts, 2)
		assert.Equal(t, "what is this", payload.Contents[0].Parts[0].Text)
		assert.Equal(t, "image/png", payload.Contents[0].Parts[1].InlineData.MIMEType)
		assert.Equal(t, []byte{1, 2, 3}, payload.Contents[0].Parts[1].InlineData.Data)

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"score\": 1,"},{"text":" \"advice\": \"x\"}"}]}}]}`))
	})

	text, err := m.Generate(context.Background(), Request{
		System: "be nice",
		Prompt: "what is this",
		Image:  &Image{MIMEType: "image/png", Data: []byte{1, 2, 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score": 1, "advice": "x"}`, text)
}

func TestGeminiRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	m := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	})

	text, err := m.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGeminiDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	m := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusForbidden)
	})

	_, err := m.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.EqualValues(t, 1, calls.Load())
}

func TestGeminiHonoursDeadline(t *testing.T) {
	m := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Generate(ctx, Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGeminiListModels(t *testing.T) {
	m := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"models":[{"name":"models/gemini-pro","supportedGenerationMethods":["generateContent"]}],"nextPageToken":"p2"}`))
			return
		}
		w.Write([]byte(`{"models":[{"name":"models/embedding-001","supportedGenerationMethods":["embedContent"]}]}`))
	})

	list, err := m.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].SupportsGenerate())
	assert.False(t, list[1].SupportsGenerate())
}
