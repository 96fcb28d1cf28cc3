package score

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"persona-gateway/internal/persona/models"
	id "persona-gateway/pkg/domain"
	"persona-gateway/pkg/platform/sentinel"
)

// LLMConfig controls the model-backed scoring engine.
type LLMConfig struct {
	APIKey   string
	Model    string
	Endpoint string
	// HTTPClient overrides the default client (tests).
	HTTPClient httpClient
}

const (
	defaultModel    = "gpt-4.1-mini"
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// LLMEngine scores verification sets through an OpenAI-compatible chat
// completions endpoint. The response is constrained to a JSON object and
// parsed strictly; anything malformed is an engine failure, never a partial
// score.
type LLMEngine struct {
	apiKey   string
	model    string
	endpoint string
	client   httpClient
}

func NewLLMEngine(cfg LLMConfig) (*LLMEngine, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("scoring engine requires an API key")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	return &LLMEngine{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   client,
	}, nil
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type scoreOutput struct {
	Score       int                `json:"score"`
	Breakdown   map[string]float64 `json:"breakdown"`
	Explanation string             `json:"explanation"`
}

func (e *LLMEngine) Compute(ctx context.Context, verifications map[id.ProviderKey]models.VerificationRecord) (models.ScoreBreakdown, error) {
	input := make(map[string]any, len(verifications))
	for key, rec := range verifications {
		input[string(key)] = map[string]any{
			"facts":      rec.Facts,
			"verifiedAt": rec.VerifiedAt.UTC().Format(time.RFC3339),
		}
	}
	payloadJSON, err := json.Marshal(map[string]any{"verifications": input})
	if err != nil {
		return models.ScoreBreakdown{}, err
	}

	reqBody := chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: scoringPrompt},
			{Role: "user", Content: string(payloadJSON)},
		},
		Temperature:    0.1,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return models.ScoreBreakdown{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return models.ScoreBreakdown{}, err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return models.ScoreBreakdown{}, fmt.Errorf("%w: scoring request: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error.Message != "" {
			return models.ScoreBreakdown{}, fmt.Errorf("%w: scoring: %s", sentinel.ErrUnavailable, apiErr.Error.Message)
		}
		return models.ScoreBreakdown{}, fmt.Errorf("%w: scoring failed with HTTP %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return models.ScoreBreakdown{}, fmt.Errorf("decode scoring response: %w", err)
	}
	if len(apiResp.Choices) == 0 || strings.TrimSpace(apiResp.Choices[0].Message.Content) == "" {
		return models.ScoreBreakdown{}, errors.New("scoring engine returned an empty response")
	}

	var parsed scoreOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(apiResp.Choices[0].Message.Content)), &parsed); err != nil {
		return models.ScoreBreakdown{}, fmt.Errorf("parse scoring response: %w", err)
	}
	if parsed.Explanation == "" {
		return models.ScoreBreakdown{}, errors.New("scoring response missing explanation")
	}
	return models.ScoreBreakdown{
		Score:       parsed.Score,
		Breakdown:   parsed.Breakdown,
		Explanation: parsed.Explanation,
	}, nil
}

const scoringPrompt = `You evaluate the trustworthiness of a user based on their verified account facts.

You receive a JSON object keyed by provider ("twitter", "github", "binance", "linkedin", "twitterTweets"), each with the verified facts and the verification date.

Score the user in exactly these four categories, each 0-100:
- developerReputation: open-source activity, contributions, GitHub followers.
- socialInfluence: follower counts, account age, posting activity.
- financialTrust: exchange KYC status and financial verifications.
- professionalism: professional profile quality, connections, headline.

Rules:
- A category with no supporting verification scores 0.
- Verified facts are trusted as stated; never invent facts.
- The overall "score" must be the rounded mean of the four category scores.
- "explanation" is one or two sentences for the user, plain language, no markdown.

Return ONLY JSON following this schema:
{
  "score": 42,
  "breakdown": {"developerReputation": 80, "socialInfluence": 55, "financialTrust": 0, "professionalism": 33},
  "explanation": "string"
}

All four breakdown keys must always be present.`
