package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"topli_chat/internal/chat/domain"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/config"
	errprocess "topli_chat/pkg/err"
	"topli_chat/pkg/logger"

	"go.uber.org/zap"
)

const (
	tokenPath    = "/oauth/access_token"
	emailPath    = "/smtp/emails"
	smsPath      = "/sms/send"
	whatsAppPath = "/whatsapp/messages"

	defaultTimeout = 20 * time.Second
)

// ErrProvider non-2xx answer from the provider
var ErrProvider = errors.New("notification provider error")

// Sender delivery capability used by the digest
type Sender interface {
	SendEmail(ctx context.Context, msg notifydomain.EmailMessage) error
	SendSMS(ctx context.Context, phone, text string) error
	SendWhatsApp(ctx context.Context, phone, text string) error
}

// SendPulseClient email / sms / whatsapp over the SendPulse REST api
type SendPulseClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	fromName     string
	fromEmail    string
	http         *http.Client
	tokens       *TokenCache
}

// NewSendPulseClient create a client; tokens are cached for the lifetime of the client
func NewSendPulseClient(cfg config.SendPulseConfig) *SendPulseClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &SendPulseClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		fromName:     cfg.FromName,
		fromEmail:    cfg.FromEmail,
		http:         &http.Client{Timeout: timeout},
	}
	c.tokens = NewTokenCache(c.exchange)
	return c
}

// Tokens expose the token cache
func (c *SendPulseClient) Tokens() *TokenCache {
	return c.tokens
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *SendPulseClient) exchange(ctx context.Context) (string, time.Duration, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return "", 0, errprocess.Set("sendpulse client credentials are not configured")
	}

	body, err := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
	})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token exchange status %d: %w", resp.StatusCode, ErrProvider)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, fmt.Errorf("token exchange decode: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("token exchange: empty access_token: %w", ErrProvider)
	}

	return tr.AccessToken, time.Duration(tr.ExpiresIn) * time.Second, nil
}

type emailAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type emailPayload struct {
	Email struct {
		Subject string         `json:"subject"`
		From    emailAddress   `json:"from"`
		To      []emailAddress `json:"to"`
		HTML    string         `json:"html"`
	} `json:"email"`
}

// SendEmail send one html email
func (c *SendPulseClient) SendEmail(ctx context.Context, msg notifydomain.EmailMessage) error {
	var p emailPayload
	p.Email.Subject = msg.Subject
	p.Email.From = emailAddress{Name: c.fromName, Email: c.fromEmail}
	p.Email.To = []emailAddress{{Email: msg.To}}
	p.Email.HTML = msg.HTML
	return c.post(ctx, emailPath, p)
}

// SendSMS send a text message to one phone
func (c *SendPulseClient) SendSMS(ctx context.Context, phone, text string) error {
	return c.post(ctx, smsPath, map[string]interface{}{
		"phones": []string{phone},
		"body":   text,
	})
}

// SendWhatsApp send a whatsapp text to one phone
func (c *SendPulseClient) SendWhatsApp(ctx context.Context, phone, text string) error {
	return c.post(ctx, whatsAppPath, map[string]interface{}{
		"to":   phone,
		"body": text,
	})
}

func (c *SendPulseClient) post(ctx context.Context, path string, payload interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Invalidate()
		return fmt.Errorf("post %s: %w", path, domain.ErrUnauthorized)
	case resp.StatusCode >= http.StatusMultipleChoices:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Log.Warn("sendpulse rejected request",
			zap.String("path", path), zap.Int("status", resp.StatusCode), zap.ByteString("detail", detail))
		return fmt.Errorf("post %s status %d: %w", path, resp.StatusCode, ErrProvider)
	}
	return nil
}
