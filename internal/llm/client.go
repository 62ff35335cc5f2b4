// Package llm wraps the remote AI scoring endpoint: bounded retry with
// exponential backoff for transient failures, a fixed overall timeout,
// and lenient parsing of the structured score reply.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fedscout/fedscout/internal/logger"
)

const (
	requestTimeout = 30 * time.Second
	maxAttempts    = 3
	apiVersion     = "2023-06-01"

	scoringSystemPrompt = "You are an expert federal contract analyst. Your role is to evaluate " +
		"government contracting opportunities and score them based on fit, win probability, and strategic value."
)

// ErrAPIFailure is the single failure class surfaced for unretried or
// retry-exhausted scoring calls. Callers match it with errors.Is to layer
// their own skip/retry policy on top.
var ErrAPIFailure = errors.New("scoring API failure")

// ScoreResult is the parsed outcome of one scoring call.
type ScoreResult struct {
	Score     int
	Rationale string
}

// Client is an HTTP client for the Anthropic messages API.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
	logger    *zap.Logger
	retryWait time.Duration
}

// NewClient creates a scoring client. maxTokens <= 0 falls back to 2048.
func NewClient(baseURL, apiKey, model string, maxTokens int, log *zap.Logger) *Client {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: requestTimeout},
		logger:    log,
		retryWait: 2 * time.Second,
	}
}

// ScoreOpportunity asks the model to score an opportunity against the
// company's capabilities profile. The reply is expected as a two-line
// "SCORE: n" / "RATIONALE: ..." structure; an unparseable reply degrades
// to a zero score carrying the raw text, never an error.
func (c *Client) ScoreOpportunity(ctx context.Context, title, description, capabilities string) (*ScoreResult, error) {
	userMessage := fmt.Sprintf(
		"Analyze this federal contracting opportunity and provide a score (0-100) with rationale.\n\n"+
			"Opportunity Title: %s\n\n"+
			"Description: %s\n\n"+
			"Our Capabilities: %s\n\n"+
			"Provide your response in this exact format:\n"+
			"SCORE: [0-100]\n"+
			"RATIONALE: [Your analysis]",
		title, description, capabilities,
	)

	response, err := c.sendMessage(ctx, scoringSystemPrompt, userMessage)
	if err != nil {
		return nil, err
	}
	return parseScoreResponse(response), nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// sendMessage performs the HTTP call with bounded retry. Server errors,
// rate limits, and transport failures retry with exponential backoff;
// other client errors fail immediately. Every failure wraps ErrAPIFailure.
func (c *Client) sendMessage(ctx context.Context, system, userMessage string) (string, error) {
	body := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: userMessage}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	wait := c.retryWait
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrAPIFailure, ctx.Err())
			}
			wait *= 2
		}

		text, retryable, err := c.doRequest(ctx, data)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", fmt.Errorf("%w: %v", ErrAPIFailure, err)
		}
		c.logger.Warn("scoring call failed, will retry",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return "", fmt.Errorf("%w: max retries exceeded: %v", ErrAPIFailure, lastErr)
}

func (c *Client) doRequest(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("scoring request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Parsed below.
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return "", true, fmt.Errorf("scoring API returned %d", resp.StatusCode)
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return "", false, fmt.Errorf("scoring API returned %d: %s",
			resp.StatusCode, logger.TruncateForLog(string(respBody), 200))
	}

	var result messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", false, fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", false, fmt.Errorf("empty response from scoring API")
	}
	return result.Content[0].Text, false, nil
}

// parseScoreResponse extracts the SCORE and RATIONALE lines. On any parse
// problem the raw response becomes the rationale with a score of 0, a
// low-confidence fallback rather than an error.
func parseScoreResponse(response string) *ScoreResult {
	result := &ScoreResult{Score: 0, Rationale: response}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "SCORE:"); ok {
			score, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return &ScoreResult{Score: 0, Rationale: response}
			}
			result.Score = score
		} else if rest, ok := strings.CutPrefix(line, "RATIONALE:"); ok {
			result.Rationale = strings.TrimSpace(rest)
		}
	}

	return result
}
