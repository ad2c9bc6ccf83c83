// Package announce provides release announcement functionality.
package announce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/releaseit/internal/config"
	"github.com/oarkflow/releaseit/internal/parallel"
)

// Renderer expands message templates.
type Renderer interface {
	Apply(tmpl string) (string, error)
	Get(key string) string
}

// Announcer sends release announcements.
type Announcer struct {
	config config.Announce
	tmpl   Renderer
	http   *http.Client
	dryRun bool
}

// Option configures an Announcer.
type Option func(*Announcer)

// WithHTTPClient sets the HTTP client used for webhooks.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Announcer) { a.http = c }
}

// WithDryRun logs announcements instead of sending them.
func WithDryRun(dryRun bool) Option {
	return func(a *Announcer) { a.dryRun = dryRun }
}

// NewAnnouncer creates a new announcer.
func NewAnnouncer(cfg config.Announce, tmpl Renderer, opts ...Option) *Announcer {
	a := &Announcer{
		config: cfg,
		tmpl:   tmpl,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Channels returns the names of the enabled announcement channels.
func (a *Announcer) Channels() []string {
	var names []string
	for _, c := range a.channels() {
		names = append(names, c.name)
	}
	return names
}

type channel struct {
	name string
	send func(ctx context.Context) error
}

func (a *Announcer) channels() []channel {
	var cs []channel
	if a.config.Slack.Enabled {
		cs = append(cs, channel{"slack", a.announceSlack})
	}
	if a.config.Discord.Enabled {
		cs = append(cs, channel{"discord", a.announceDiscord})
	}
	if a.config.Webhook.Enabled {
		cs = append(cs, channel{"webhook", a.announceWebhook})
	}
	return cs
}

// Spawn starts one supervised task per enabled channel. Failures are
// reported through the task group.
func (a *Announcer) Spawn(tasks parallel.Spawner) {
	for _, c := range a.channels() {
		if a.dryRun {
			log.Info("Skipping announcement (dry run)", "channel", c.name)
			continue
		}
		log.Debug("Sending announcement", "channel", c.name)
		tasks.Go("announce "+c.name, c.send)
	}
}

// announceSlack sends a Slack notification.
func (a *Announcer) announceSlack(ctx context.Context) error {
	webhook := os.Getenv("SLACK_WEBHOOK_URL")
	if webhook == "" {
		return fmt.Errorf("SLACK_WEBHOOK_URL environment variable not set")
	}

	message, err := a.formatMessage(a.config.Slack.MessageTemplate)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"text": message,
	}

	if a.config.Slack.Channel != "" {
		payload["channel"] = a.config.Slack.Channel
	}
	if a.config.Slack.Username != "" {
		payload["username"] = a.config.Slack.Username
	}
	if a.config.Slack.IconEmoji != "" {
		payload["icon_emoji"] = a.config.Slack.IconEmoji
	}

	if err := a.postJSON(ctx, webhook, payload, nil); err != nil {
		return err
	}

	log.Info("Slack announcement sent")
	return nil
}

// announceDiscord sends a Discord notification.
func (a *Announcer) announceDiscord(ctx context.Context) error {
	webhook := os.Getenv("DISCORD_WEBHOOK_URL")
	if webhook == "" {
		return fmt.Errorf("DISCORD_WEBHOOK_URL environment variable not set")
	}

	message, err := a.formatMessage(a.config.Discord.MessageTemplate)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"content": message,
	}

	if a.config.Discord.Author != "" {
		payload["username"] = a.config.Discord.Author
	}

	if err := a.postJSON(ctx, webhook, payload, nil); err != nil {
		return err
	}

	log.Info("Discord announcement sent")
	return nil
}

// announceWebhook posts the release as JSON to a generic endpoint.
func (a *Announcer) announceWebhook(ctx context.Context) error {
	webhookURL := a.config.Webhook.EndpointURL
	if webhookURL == "" {
		webhookURL = os.Getenv("ANNOUNCE_WEBHOOK_URL")
	}
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	message, err := a.formatMessage(a.config.Webhook.MessageTemplate)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"name":        a.tmpl.Get("Name"),
		"version":     a.tmpl.Get("Version"),
		"tag":         a.tmpl.Get("Tag"),
		"release_url": a.tmpl.Get("ReleaseURL"),
		"changelog":   a.tmpl.Get("Changelog"),
		"message":     message,
	}

	headers := make(map[string]string, len(a.config.Webhook.Headers))
	for key, value := range a.config.Webhook.Headers {
		expanded, err := a.tmpl.Apply(value)
		if err != nil {
			return fmt.Errorf("failed to expand header %s: %w", key, err)
		}
		headers[key] = expanded
	}

	if err := a.postJSON(ctx, webhookURL, payload, headers); err != nil {
		return err
	}

	log.Info("Webhook announcement sent")
	return nil
}

// formatMessage renders the message template, falling back to the default.
func (a *Announcer) formatMessage(messageTemplate string) (string, error) {
	if messageTemplate == "" {
		messageTemplate = DefaultMessageTemplate
	}

	message, err := a.tmpl.Apply(messageTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to execute message template: %w", err)
	}
	return strings.TrimSpace(message), nil
}

// postJSON posts a JSON payload to url.
func (a *Announcer) postJSON(ctx context.Context, url string, payload any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// DefaultMessageTemplate is used when a channel sets no message template.
const DefaultMessageTemplate = `🚀 {{ .Name }} {{ .Version }} has been released!

{{ if .ReleaseURL }}Check it out: {{ .ReleaseURL }}{{ end }}`
