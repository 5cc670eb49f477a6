package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/HammerMeetNail/campussafe/internal/config"
	"github.com/HammerMeetNail/campussafe/internal/logging"
)

var ErrAllPushesFailed = errors.New("all push notifications failed")

// Push is a single notification addressed to one or more device tokens.
type Push struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// PushProvider delivers mobile push notifications.
type PushProvider interface {
	Send(ctx context.Context, push *Push) error
}

// NewPushProvider builds the provider named in cfg.
func NewPushProvider(ctx context.Context, cfg *config.PushConfig) (PushProvider, error) {
	switch cfg.Provider {
	case "fcm":
		return NewFCMProvider(ctx, cfg.CredentialsJSON, cfg.CredentialsFile)
	default:
		return NewConsolePushProvider(), nil
	}
}

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMProvider sends pushes through Firebase Cloud Messaging.
type FCMProvider struct {
	client messageSender
}

// NewFCMProvider authenticates with base64 encoded service account JSON when
// given, otherwise with the credentials file.
func NewFCMProvider(ctx context.Context, encodedJSON, credentialsFile string) (*FCMProvider, error) {
	var opt option.ClientOption
	if encodedJSON != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedJSON)
		if err != nil {
			return nil, fmt.Errorf("decoding firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
	} else {
		opt = option.WithCredentialsFile(credentialsFile)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting messaging client: %w", err)
	}
	return &FCMProvider{client: client}, nil
}

// Send delivers one message per token. It fails only when every token failed.
func (p *FCMProvider) Send(ctx context.Context, push *Push) error {
	if len(push.Tokens) == 0 {
		return nil
	}

	sent, failed := 0, 0
	for _, token := range push.Tokens {
		message := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: push.Title,
				Body:  push.Body,
			},
			Data: push.Data,
			Android: &messaging.AndroidConfig{
				Priority: "high",
				Notification: &messaging.AndroidNotification{
					Sound: "default",
				},
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{Sound: "default"},
				},
			},
		}
		if _, err := p.client.Send(ctx, message); err != nil {
			failed++
			logging.Warn("FCM send failed", map[string]interface{}{"error": err.Error()})
			continue
		}
		sent++
	}

	logging.Info("FCM push delivered", map[string]interface{}{"sent": sent, "failed": failed})
	if sent == 0 {
		return ErrAllPushesFailed
	}
	return nil
}

// ConsolePushProvider logs pushes (for development)
type ConsolePushProvider struct{}

func NewConsolePushProvider() *ConsolePushProvider {
	return &ConsolePushProvider{}
}

func (p *ConsolePushProvider) Send(ctx context.Context, push *Push) error {
	logging.Info("Push (console provider)", map[string]interface{}{
		"tokens": len(push.Tokens),
		"title":  push.Title,
		"body":   push.Body,
	})
	return nil
}
