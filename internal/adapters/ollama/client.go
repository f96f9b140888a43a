// Package ollama provides an adapter for the Ollama LLM service.
// It classifies free text into emotion confidences by sending it to a local
// Ollama instance and parsing the structured JSON reply into a
// domain.EmotionProfile.
package ollama

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.1:8b"
)

// Emotions is the closed label set the classifier may return.
var Emotions = []string{
	"admiration", "adoration", "aesthetic appreciation", "amusement", "anger",
	"anxiety", "awe", "awkwardness", "boredom", "calmness", "confusion",
	"craving", "disgust", "empathic pain", "entrancement", "excitement", "fear",
	"horror", "interest", "joy", "nostalgia", "relief", "romance", "sadness",
	"satisfaction", "sexual desire", "surprise",
}

var systemPrompt = "You are the MoodMix emotion classifier. Analyze the emotional content of the user's text.\n\n" +
	"Rules:\n" +
	"Output: Return ONLY a JSON object with emotion names as keys and confidence scores as values. No conversational text.\n" +
	"Labels: Use ONLY these emotions: [" + strings.Join(Emotions, ", ") + "].\n" +
	"Scores: Assign 0 to emotions not present. Scores are between 0.0 and 1.0 and should sum to 1.0.\n" +
	"Focus on the dominant emotions expressed in the text and give them appropriately high scores."

// Config points the classifier at an Ollama instance.
type Config struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

// Client is the Ollama emotion classifier.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// compile-time interface assertion
var _ ports.EmotionClassifier = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *Client) Classify(ctx context.Context, text string) (domain.EmotionProfile, error) {
	payload := chatRequest{
		Model:  c.model,
		Stream: false,
		Format: "json",
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("ollama: %s", parsed.Error)
	}

	content := stripCodeFence(parsed.Message.Content)
	if content == "" {
		return nil, fmt.Errorf("ollama: empty response")
	}

	profile, err := parseProfile(content)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("ollama: classified", zap.Int("emotions", len(profile)))
	return profile, nil
}

// parseProfile keeps known labels with positive numeric scores. Keys are
// matched case-insensitively; anything else is ignored.
func parseProfile(content string) (domain.EmotionProfile, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("ollama: decode emotions: %w", err)
	}
	if msg, ok := raw["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("ollama: model reported error: %s", msg)
	}

	known := make(map[string]struct{}, len(Emotions))
	for _, e := range Emotions {
		known[e] = struct{}{}
	}

	profile := make(domain.EmotionProfile)
	for k, v := range raw {
		name := strings.ToLower(strings.TrimSpace(k))
		if _, ok := known[name]; !ok {
			continue
		}
		score, ok := v.(float64)
		if !ok || score <= 0 {
			continue
		}
		profile[name] = score
	}
	return profile, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
