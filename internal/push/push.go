// Package push talks to the push-notification gateway. It is a fallback
// channel for room subscribers that are not live to receive the in-band event.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Receipt reports one delivery attempt.
type Receipt struct {
	Token string
	OK    bool
	Err   error
}

// Gateway delivers a title/body pair to a device token.
type Gateway interface {
	Send(ctx context.Context, token, title, body string) Receipt
}

// FCM posts to an FCM-style HTTP endpoint authorised by a server key.
type FCM struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewFCM(endpoint, key string) *FCM {
	return &FCM{
		Endpoint: endpoint,
		Key:      key,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type fcmPayload struct {
	To           string          `json:"to"`
	CollapseKey  string          `json:"collapse_key"`
	Notification fcmNotification `json:"notification"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (f *FCM) Send(ctx context.Context, token, title, body string) Receipt {
	payload, err := json.Marshal(fcmPayload{
		To:           token,
		CollapseKey:  "com.bubble",
		Notification: fcmNotification{Title: title, Body: body},
	})
	if err != nil {
		return Receipt{Token: token, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Receipt{Token: token, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+f.Key)

	resp, err := f.Client.Do(req)
	if err != nil {
		return Receipt{Token: token, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Receipt{Token: token, Err: fmt.Errorf("push gateway status %d", resp.StatusCode)}
	}
	return Receipt{Token: token, OK: true}
}

// Console logs instead of delivering, for dev and tests.
type Console struct{}

func (Console) Send(_ context.Context, token, title, body string) Receipt {
	log.Info().Str("module", "push").Str("token", token).Str("title", title).Str("body", body).Msg("console push")
	return Receipt{Token: token, OK: true}
}
