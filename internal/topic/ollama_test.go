package topic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jason-s-yu/imposter/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "  ស្វាយ, mango\n", "done": true})
	}))
	defer srv.Close()

	o := NewOllama(Config{Enabled: true, URL: srv.URL + "/", Model: "test-model"}, quietLogger())
	word, err := o.Generate(context.Background(), "ផ្លែឈើ")
	require.NoError(t, err)
	assert.Equal(t, "ស្វាយ", word)

	assert.Equal(t, "test-model", got.Model)
	assert.False(t, got.Stream)
	assert.Contains(t, got.Prompt, `"ផ្លែឈើ"`)
	assert.Equal(t, 20, got.Options.NumPredict)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"empty response", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"response":"  \n"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			o := NewOllama(Config{Enabled: true, URL: srv.URL}, quietLogger())
			_, err := o.Generate(context.Background(), "សត្វ")
			assert.ErrorIs(t, err, game.ErrProviderUnavailable)
		})
	}
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	o := NewOllama(Config{Enabled: true, URL: srv.URL, Timeout: 50 * time.Millisecond}, quietLogger())
	start := time.Now()
	_, err := o.Generate(context.Background(), "សត្វ")
	assert.ErrorIs(t, err, game.ErrProviderUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDisabled(t *testing.T) {
	o := NewOllama(Config{}, quietLogger())
	assert.False(t, o.Enabled())
	_, err := o.Generate(context.Background(), "សត្វ")
	assert.ErrorIs(t, err, game.ErrProviderUnavailable)
}

func TestFirstWord(t *testing.T) {
	assert.Equal(t, "ខ្លា", FirstWord("ខ្លា (tiger)"))
	assert.Equal(t, "ដំរី", FirstWord("\n ដំរី,elephant"))
	assert.Empty(t, FirstWord("   "))
}
