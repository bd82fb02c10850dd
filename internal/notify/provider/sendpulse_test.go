package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"topli_chat/internal/chat/domain"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/config"
	"topli_chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSendPulse struct {
	mu        sync.Mutex
	exchanges int
	tokens    []string
	bodies    map[string][]map[string]interface{}
	rejectOne bool
}

func (f *fakeSendPulse) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "client_credentials", req.GrantType)
		assert.Equal(t, "id", req.ClientID)
		assert.Equal(t, "secret", req.ClientSecret)

		f.mu.Lock()
		f.exchanges++
		n := f.exchanges
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "token-" + string(rune('0'+n)),
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		})
	})

	record := func(path string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()

			if f.rejectOne {
				f.rejectOne = false
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.tokens = append(f.tokens, r.Header.Get("Authorization"))
			f.bodies[path] = append(f.bodies[path], body)
			w.WriteHeader(http.StatusOK)
		}
	}
	mux.HandleFunc(emailPath, record(emailPath))
	mux.HandleFunc(smsPath, record(smsPath))
	mux.HandleFunc(whatsAppPath, record(whatsAppPath))
	return mux
}

func newTestClient(t *testing.T) (*SendPulseClient, *fakeSendPulse) {
	logger.SetNewNop()

	fake := &fakeSendPulse{bodies: map[string][]map[string]interface{}{}}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c := NewSendPulseClient(config.SendPulseConfig{
		BaseURL:      srv.URL + "/",
		ClientID:     "id",
		ClientSecret: "secret",
		FromName:     "Topli Chat",
		FromEmail:    "no-reply@topli.chat",
		Timeout:      5 * time.Second,
	})
	return c, fake
}

func TestSendPulse_TwoDispatchesShareOneExchange(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SendSMS(ctx, "+905551112233", "hello"))
	require.NoError(t, c.SendWhatsApp(ctx, "+905551112233", "hello"))

	assert.Equal(t, 1, fake.exchanges)
	assert.Equal(t, []string{"Bearer token-1", "Bearer token-1"}, fake.tokens)

	sms := fake.bodies[smsPath][0]
	assert.Equal(t, []interface{}{"+905551112233"}, sms["phones"])
	assert.Equal(t, "hello", sms["body"])

	wa := fake.bodies[whatsAppPath][0]
	assert.Equal(t, "+905551112233", wa["to"])
}

func TestSendPulse_EmailPayload(t *testing.T) {
	c, fake := newTestClient(t)

	err := c.SendEmail(context.Background(), notifydomain.EmailMessage{
		To:      "a@b.c",
		Subject: "subject",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)

	email := fake.bodies[emailPath][0]["email"].(map[string]interface{})
	assert.Equal(t, "subject", email["subject"])
	assert.Equal(t, "<p>hi</p>", email["html"])
	assert.Equal(t, map[string]interface{}{"name": "Topli Chat", "email": "no-reply@topli.chat"}, email["from"])
	assert.Equal(t, []interface{}{map[string]interface{}{"email": "a@b.c"}}, email["to"])
}

func TestSendPulse_UnauthorizedInvalidatesToken(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SendSMS(ctx, "+905551112233", "first"))

	fake.rejectOne = true
	err := c.SendSMS(ctx, "+905551112233", "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	require.NoError(t, c.SendSMS(ctx, "+905551112233", "third"))
	assert.Equal(t, 2, fake.exchanges)
	assert.Equal(t, "Bearer token-2", fake.tokens[len(fake.tokens)-1])
}

func TestSendPulse_ExchangeFailure(t *testing.T) {
	logger.SetNewNop()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewSendPulseClient(config.SendPulseConfig{BaseURL: srv.URL, ClientID: "id", ClientSecret: "bad"})
	err := c.SendSMS(context.Background(), "+905551112233", "x")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProvider))
}

func TestSendPulse_MissingCredentials(t *testing.T) {
	logger.SetNewNop()
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewSendPulseClient(config.SendPulseConfig{BaseURL: srv.URL})
	err := c.SendEmail(context.Background(), notifydomain.EmailMessage{To: "a@topli.chat"})

	require.Error(t, err)
	assert.False(t, called)
}
