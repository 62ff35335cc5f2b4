// Package notify delivers outbound notifications: MessageCard posts to a
// chat incoming webhook and HTML email over SMTP. Both clients treat a
// disabled or unconfigured channel as a silent no-op so callers can always
// invoke them unconditionally.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fedscout/fedscout/internal/logger"
)

const (
	chatTimeout = 10 * time.Second

	themeBlue  = "0076D7"
	themeGreen = "28a745"
)

// ChatClient posts MessageCard payloads to a chat incoming webhook.
type ChatClient struct {
	url     string
	enabled bool
	client  *http.Client
	logger  *zap.Logger
}

// NewChatClient creates a webhook client. An enabled client without a URL
// is downgraded to disabled with a warning.
func NewChatClient(url string, enabled bool, log *zap.Logger) *ChatClient {
	if enabled && url == "" {
		log.Warn("chat webhook enabled but URL not configured, notifications will be skipped")
		enabled = false
	}
	return &ChatClient{
		url:     url,
		enabled: enabled,
		client:  &http.Client{Timeout: chatTimeout},
		logger:  log,
	}
}

type messageCard struct {
	Type            string       `json:"@type"`
	Context         string       `json:"@context"`
	Title           string       `json:"title"`
	Text            string       `json:"text"`
	ThemeColor      string       `json:"themeColor"`
	PotentialAction []cardAction `json:"potentialAction,omitempty"`
}

type cardAction struct {
	Type    string       `json:"@type"`
	Name    string       `json:"name"`
	Targets []cardTarget `json:"targets"`
}

type cardTarget struct {
	OS  string `json:"os"`
	URI string `json:"uri"`
}

// SendMessage posts a plain title/text card.
func (c *ChatClient) SendMessage(ctx context.Context, title, text string) error {
	card := messageCard{
		Title:      title,
		Text:       text,
		ThemeColor: themeBlue,
	}
	return c.sendCard(ctx, card)
}

// SendHighScoreAlert posts a green card for a high-scoring opportunity,
// with a "View Details" action when a link is available.
func (c *ChatClient) SendHighScoreAlert(ctx context.Context, title string, score int, solicitation, deadline, link string) error {
	card := messageCard{
		Title: "High-Score Opportunity: " + title,
		Text: fmt.Sprintf(
			"**Score:** %d/100\n\n**Solicitation:** %s\n\n**Deadline:** %s\n\nReview this opportunity immediately.",
			score, solicitation, deadline,
		),
		ThemeColor: themeGreen,
	}
	if link != "" {
		card.PotentialAction = []cardAction{{
			Type: "OpenUri",
			Name: "View Details",
			Targets: []cardTarget{{
				OS:  "default",
				URI: link,
			}},
		}}
	}
	return c.sendCard(ctx, card)
}

func (c *ChatClient) sendCard(ctx context.Context, card messageCard) error {
	if !c.enabled {
		c.logger.Debug("chat notifications disabled, skipping message", zap.String("title", card.Title))
		return nil
	}

	card.Type = "MessageCard"
	card.Context = "https://schema.org/extensions"

	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshaling message card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to chat webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat webhook returned %d: %s",
			resp.StatusCode, logger.TruncateForLog(string(body), 200))
	}

	c.logger.Info("sent chat notification", zap.String("title", card.Title))
	return nil
}
