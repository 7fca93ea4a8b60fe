// Package topic turns a category into a specific secret word by asking a
// local Ollama model.
package topic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jason-s-yu/imposter/internal/game"
	"github.com/sirupsen/logrus"
)

// Config configures the Ollama client.
type Config struct {
	Enabled    bool
	URL        string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Ollama implements game.TopicProvider over the /api/generate endpoint.
type Ollama struct {
	cfg Config
	log logrus.FieldLogger
}

var _ game.TopicProvider = (*Ollama)(nil)

// NewOllama builds a client, defaulting the URL, model and timeout.
func NewOllama(cfg Config, log logrus.FieldLogger) *Ollama {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = "http://localhost:11434"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = game.DefaultTopicTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ollama{cfg: cfg, log: log}
}

func (o *Ollama) Enabled() bool { return o.cfg.Enabled }

const promptTemplate = `Generate ONE specific Khmer word related to "%s".
For example:
- If category is "អាហារ" (food), return specific food like "សាច់អាំង" (grilled meat) or "សម្លកកូរ" (Khmer curry)
- If category is "ផ្លែឈើ" (fruit), return specific fruit like "ស្វាយ" (mango) or "ចេក" (banana)
- If category is "សត្វ" (animal), return specific animal like "ខ្លា" (tiger) or "ដំរី" (elephant)

Return ONLY ONE specific Khmer word, nothing else. No explanation, no punctuation.`

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

// Generate asks the model for one word in category. Every failure wraps
// game.ErrProviderUnavailable.
func (o *Ollama) Generate(ctx context.Context, category string) (string, error) {
	if !o.cfg.Enabled {
		return "", fmt.Errorf("ollama disabled: %w", game.ErrProviderUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  o.cfg.Model,
		Prompt: fmt.Sprintf(promptTemplate, category),
		Stream: false,
		Options: generateOptions{
			Temperature: 0.8,
			TopP:        0.9,
			NumPredict:  20,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	endpoint := strings.TrimRight(o.cfg.URL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := o.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %v: %w", err, game.ErrProviderUnavailable)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("generate status %d: %s: %w", res.StatusCode, strings.TrimSpace(string(msg)), game.ErrProviderUnavailable)
	}

	var payload struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode generate response: %v: %w", err, game.ErrProviderUnavailable)
	}

	word := FirstWord(payload.Response)
	if word == "" {
		return "", fmt.Errorf("empty generate response: %w", game.ErrProviderUnavailable)
	}
	o.log.WithFields(logrus.Fields{"category": category, "topic": word}).Info("ollama generated topic")
	return word, nil
}

// FirstWord returns the leading token of a model response, split on whitespace or commas.
func FirstWord(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
