package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"tradingbot/internal/analysis"
	"tradingbot/internal/models"
)

const (
	apiURL      = "https://api.mistral.ai/v1/chat/completions"
	model       = "mistral-small-latest"
	maxAttempts = 3
)

// MistralClient asks a language model for a second opinion on technical
// signals. Everything it returns is advisory: callers must degrade
// gracefully when it errors.
type MistralClient struct {
	apiKey string
	client *http.Client
}

func NewMistralClient(apiKey string) *MistralClient {
	return &MistralClient{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type mistralRequest struct {
	Model    string           `json:"model"`
	Messages []mistralMessage `json:"messages"`
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// AnalyzeSentiment summarizes the market mood for a symbol from its recent
// feature rows.
func (m *MistralClient) AnalyzeSentiment(ctx context.Context, symbol string, rows []analysis.FeatureRow) (*models.SentimentReport, error) {
	last := rows[len(rows)-1]
	prompt := fmt.Sprintf(`You are a crypto market analyst. Return ONLY valid JSON.
Symbol: %s
Current State:
- Price: %.4f
- RSI: %.2f
- MACD: %.4f (Signal: %.4f)
- ADX: %.2f (DI+: %.2f, DI-: %.2f)
- Volume Ratio: %.2fx
- BB Position: %.2f

Task: Characterize the short-term market sentiment for this symbol.

OUTPUT JSON schema:
{
  "sentiment": "bullish" | "bearish" | "neutral",
  "confidence": 0-100,
  "analysis": "max 3 sentences"
}`,
		symbol, last.Close, last.RSI, last.MACD, last.MACDSignal,
		last.ADX, last.DIPlus, last.DIMinus, last.VolumeRatio, last.BBPosition)

	content, err := m.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var result struct {
		Sentiment  string  `json:"sentiment"`
		Confidence float64 `json:"confidence"`
		Analysis   string  `json:"analysis"`
	}
	if err := parseJSON(content, &result); err != nil {
		return nil, err
	}
	return &models.SentimentReport{
		Sentiment:  result.Sentiment,
		Confidence: result.Confidence,
		Analysis:   result.Analysis,
	}, nil
}

// ValidateSignal asks the model whether a technical decision looks sound.
func (m *MistralClient) ValidateSignal(ctx context.Context, symbol string, d analysis.SignalDecision) (*models.SignalValidation, error) {
	prompt := fmt.Sprintf(`You are a crypto trading risk reviewer. Return ONLY valid JSON.
A technical system proposes a %s on %s.
Signal strength: %.1f/100, confidence: %.1f%%
Score breakdown: %s

Market state:
- Price: %.4f
- RSI: %.2f
- ADX: %.2f
- Volume Ratio: %.2fx

Task: Decide if this trade is reasonable NOW. If uncertain, say invalid.

OUTPUT JSON schema:
{
  "valid": true or false,
  "confidence": 0-100,
  "reasoning": "max 2 sentences"
}`,
		d.Direction, symbol, d.Strength, d.Confidence, strings.Join(d.Reasons, "; "),
		d.Features.Close, d.Features.RSI, d.Features.ADX, d.Features.VolumeRatio)

	content, err := m.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var result struct {
		Valid      bool    `json:"valid"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := parseJSON(content, &result); err != nil {
		return nil, err
	}
	return &models.SignalValidation{
		Valid:      result.Valid,
		Confidence: result.Confidence,
		Reasoning:  result.Reasoning,
	}, nil
}

// complete sends one chat completion, retrying transient failures with
// exponential backoff.
func (m *MistralClient) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := mistralRequest{
		Model:    model,
		Messages: []mistralMessage{{Role: "user", Content: prompt}},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(b.Duration()):
			}
		}
		content, retryable, err := m.doRequest(ctx, jsonData)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", fmt.Errorf("mistral request failed after %d attempts: %w", maxAttempts, lastErr)
}

func (m *MistralClient) doRequest(ctx context.Context, body []byte) (content string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("mistral API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var mistralResp mistralResponse
	if err := json.Unmarshal(respBody, &mistralResp); err != nil {
		return "", false, err
	}
	if len(mistralResp.Choices) == 0 {
		return "", false, fmt.Errorf("no response from Mistral")
	}
	return mistralResp.Choices[0].Message.Content, false, nil
}

// parseJSON extracts the first JSON object embedded in a model reply. Models
// wrap their answers in prose or code fences often enough that a plain
// Unmarshal is not reliable.
func parseJSON(content string, v any) error {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("no JSON found in response")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse AI response: %v", err)
	}
	return nil
}
