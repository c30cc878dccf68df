package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultDiscordURL = "https://discord.com/api/v10"

	maxTitleLength       = 256
	maxDescriptionLength = 4096
)

var ErrUnauthorized = errors.New("discord rejected the bot token")

// Discord talks to the Discord REST API as a bot user.
type Discord struct {
	baseURL    string
	token      string
	client     *http.Client
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
}

type DiscordOption func(*Discord)

func WithBaseURL(baseURL string) DiscordOption {
	return func(d *Discord) {
		if baseURL != "" {
			d.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) DiscordOption {
	return func(d *Discord) { d.client = client }
}

func WithLimiter(limiter *rate.Limiter) DiscordOption {
	return func(d *Discord) { d.limiter = limiter }
}

func WithConnectBackOff(newBackOff func() backoff.BackOff) DiscordOption {
	return func(d *Discord) { d.newBackOff = newBackOff }
}

func NewDiscord(token string, opts ...DiscordOption) *Discord {
	d := &Discord{
		baseURL: DefaultDiscordURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		// Discord allows 5 messages per 5 seconds per channel
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = time.Minute
			b.MaxElapsedTime = 0
			return b
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect verifies the token, retrying until Discord answers or ctx ends.
// An invalid token is not retried.
func (d *Discord) Connect(ctx context.Context) error {
	operation := func() (string, error) {
		var user struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		}
		status, err := d.do(ctx, http.MethodGet, "/users/@me", nil, &user)
		switch {
		case status == http.StatusUnauthorized:
			return "", backoff.Permanent(ErrUnauthorized)
		case err != nil:
			slog.Warn("Discord not reachable, retrying", "error", err)
			return "", err
		}
		return user.Username, nil
	}

	username, err := backoff.RetryWithData(operation, backoff.WithContext(d.newBackOff(), ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to discord: %w", err)
	}

	slog.Info("Connected to Discord", "user", username)
	return nil
}

func (d *Discord) ResolveDestination(ctx context.Context, handle string) (Destination, Resolution, error) {
	var channel struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	status, err := d.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(handle), nil, &channel)
	switch {
	case err == nil:
		return Destination{Handle: handle, Name: channel.Name}, Resolved, nil
	case status == http.StatusNotFound:
		return Destination{Handle: handle}, NotFound, err
	case status == http.StatusForbidden:
		return Destination{Handle: handle}, Forbidden, err
	default:
		return Destination{Handle: handle}, Transient, err
	}
}

func (d *Discord) Deliver(ctx context.Context, dest Destination, msg Message) error {
	payload := newMessagePayload(msg)
	if _, err := d.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(dest.Handle)+"/messages", payload, nil); err != nil {
		return fmt.Errorf("failed to deliver to %s: %w", dest.Handle, err)
	}
	return nil
}

// do performs one API call. The returned status is 0 when no response was
// received.
func (d *Discord) do(ctx context.Context, method, path string, body, out any) (int, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+d.token)
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/lysyi3m/news-relay, 1.0)")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api returned %d: %s", e.Status, e.Body)
}

type messagePayload struct {
	Content         string          `json:"content"`
	Embeds          []embed         `json:"embeds"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Image       *embedImage  `json:"image,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

func newMessagePayload(msg Message) messagePayload {
	content := msg.Text
	for _, target := range msg.MentionTargets {
		content += " <@&" + target + ">"
	}

	e := embed{
		Title:       clip(msg.Title, maxTitleLength),
		URL:         msg.URL,
		Description: clip(msg.Description, maxDescriptionLength),
		Color:       msg.Color,
	}
	if msg.ImageURL != "" {
		e.Image = &embedImage{URL: msg.ImageURL}
	}
	if msg.FooterText != "" {
		e.Footer = &embedFooter{Text: msg.FooterText}
	}

	return messagePayload{
		Content:         content,
		Embeds:          []embed{e},
		AllowedMentions: allowedMentions{Parse: []string{"roles"}},
	}
}

func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
