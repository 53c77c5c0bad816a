// Package push sends device notifications through the FCM HTTP v1 API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
)

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

var ErrInvalidToken = errors.New("device token is not registered")

type Config struct {
	ProjectID       string
	CredentialsFile string
	RatePerSecond   float64
	// Endpoint overrides the FCM base URL in tests.
	Endpoint string
}

// FCM authenticates with a service account and throttles outbound sends.
type FCM struct {
	client  *http.Client
	url     string
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Option func(*FCM)

func WithLogger(logger *slog.Logger) Option {
	return func(f *FCM) { f.logger = logger }
}

// WithHTTPClient replaces the OAuth2 client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *FCM) { f.client = c }
}

// NewFCM loads the service account credentials named in cfg.
func NewFCM(ctx context.Context, cfg Config, opts ...Option) (*FCM, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("fcm project id is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://fcm.googleapis.com"
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 20
	}
	f := &FCM{
		url:     fmt.Sprintf("%s/v1/projects/%s/messages:send", endpoint, cfg.ProjectID),
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read fcm credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, messagingScope)
		if err != nil {
			return nil, fmt.Errorf("parse fcm credentials: %w", err)
		}
		f.client = oauth2.NewClient(ctx, creds.TokenSource)
	}
	return f, nil
}

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      android           `json:"android"`
	APNS         apns              `json:"apns"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type android struct {
	Priority     string              `json:"priority"`
	Notification androidNotification `json:"notification"`
}

type androidNotification struct {
	Sound     string `json:"sound"`
	ChannelID string `json:"channel_id"`
}

type apns struct {
	Headers map[string]string `json:"headers"`
	Payload apnsPayload       `json:"payload"`
}

type apnsPayload struct {
	APS aps `json:"aps"`
}

type aps struct {
	Sound string       `json:"sound"`
	Alert notification `json:"alert"`
}

// Push sends one notification to deviceToken.
func (f *FCM) Push(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(sendRequest{Message: message{
		Token:        deviceToken,
		Notification: notification{Title: title, Body: body},
		Data:         data,
		Android: android{
			Priority:     "HIGH",
			Notification: androidNotification{Sound: "default", ChannelID: "complaints"},
		},
		APNS: apns{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: apnsPayload{APS: aps{Sound: "default", Alert: notification{Title: title, Body: body}}},
		},
	}})
	if err != nil {
		return fmt.Errorf("encode fcm message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("send fcm message: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		f.logger.DebugContext(ctx, "fcm notification sent", "device_token", redact(deviceToken))
		return nil
	case resp.StatusCode == http.StatusNotFound || bytes.Contains(respBody, []byte("UNREGISTERED")):
		return ErrInvalidToken
	default:
		return fmt.Errorf("fcm returned %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
}

func redact(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}

// Disabled is used when no FCM project is configured.
type Disabled struct {
	Logger *slog.Logger
}

// Push logs and drops the notification.
func (d Disabled) Push(ctx context.Context, deviceToken, title, _ string, _ map[string]string) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "push skipped, fcm not configured", "device_token", redact(deviceToken), "title", title)
	return nil
}
