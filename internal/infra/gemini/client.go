package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	DefaultModel    = "gemini-flash-latest"
)

// Client generates quiz questions through the Gemini generateContent API in JSON mode.
type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	model      string
}

func NewClient(apiKey, endpoint, model string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      model,
	}
}

func (c *Client) IsAvailable() bool {
	return c.apiKey != ""
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const promptTemplate = `Generate %d multiple-choice quiz questions about "%s" with %s difficulty level.

Return a JSON array where each question has:
- question: the question text
- options: array of 4 answer choices
- correctAnswer: index (0-3) of the correct option
- explanation: brief explanation of the correct answer

Example format:
[
  {
    "question": "What is 2 + 2?",
    "options": ["3", "4", "5", "6"],
    "correctAnswer": 1,
    "explanation": "2 + 2 equals 4"
  }
]`

// Generate implements app.Generator.
func (c *Client) Generate(ctx context.Context, req app.GenerateRequest) ([]domain.Question, error) {
	if !c.IsAvailable() {
		return nil, domain.ErrGeneratorUnavailable
	}

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, req.Count, req.Topic, req.Difficulty)}}}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrGeneration.WithMessagef("generator request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrGeneration.WithMessagef("read generator response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrGeneration.WithMessagef("generator returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var genResp generateResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return nil, domain.ErrGeneration.WithMessagef("parse generator response").WithCause(err)
	}
	if genResp.Error != nil {
		return nil, domain.ErrGeneration.WithMessagef("generator error: %s", genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, domain.ErrGeneration.WithMessagef("empty response from generator")
	}

	text := cleanJSONContent(genResp.Candidates[0].Content.Parts[0].Text)
	var questions []domain.Question
	if err := json.Unmarshal([]byte(text), &questions); err != nil {
		return nil, domain.ErrGeneration.WithMessagef("generator returned invalid JSON").WithCause(err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrGeneration.WithMessagef("generator returned no questions")
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, domain.ErrGeneration.WithMessagef("question %d is invalid", i+1).WithCause(err)
		}
	}
	return questions, nil
}

// cleanJSONContent strips markdown fences some models wrap around JSON.
func cleanJSONContent(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
