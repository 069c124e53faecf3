package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// maxListedFailures caps the failed paths listed in one summary.
const maxListedFailures = 10

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// RunSummary describes one pass of the quick-QC runner.
type RunSummary struct {
	Module    string
	Studies   []string
	Processed int
	Failed    []string
	Elapsed   time.Duration
}

// PostRunSummary posts a pass summary to the configured channel.
func (p *Poster) PostRunSummary(ctx context.Context, summary RunSummary) error {
	ts, err := p.PostMessage(ctx, formatRunSummary(summary))
	if err != nil {
		return err
	}
	p.logger.Info("posted run summary to slack", "ts", ts, "processed", summary.Processed, "failed", len(summary.Failed))
	return nil
}

// PostMessage posts text and returns the message timestamp.
func (p *Poster) PostMessage(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatRunSummary(s RunSummary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*%s*\n", s.Module)
	if len(s.Studies) > 0 {
		fmt.Fprintf(&sb, "*Studies:* %s\n", strings.Join(s.Studies, ", "))
	}
	fmt.Fprintf(&sb, "Checked transcript quick QC for %d files", s.Processed)
	if s.Elapsed > 0 {
		fmt.Fprintf(&sb, " in %s", s.Elapsed.Round(time.Second))
	}
	sb.WriteString(".\n")

	if len(s.Failed) > 0 {
		fmt.Fprintf(&sb, "\n*Failed: %d*\n", len(s.Failed))
		for i, path := range s.Failed {
			if i == maxListedFailures {
				fmt.Fprintf(&sb, "_…and %d more_\n", len(s.Failed)-maxListedFailures)
				break
			}
			fmt.Fprintf(&sb, "• `%s`\n", path)
		}
	}

	return sb.String()
}
