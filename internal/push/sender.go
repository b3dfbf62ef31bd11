// Package push delivers notification batches via Firebase Cloud Messaging.
package push

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Payload is one notification addressed to one device.
type Payload struct {
	Token    string
	Title    string
	Body     string
	ImageURL string
}

// FCMSender sends push notifications via Firebase Cloud Messaging.
// Nil-safe: when not configured, all methods are no-ops.
type FCMSender struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMSender creates an FCM sender from a service account credentials
// file. Returns nil if credentialsFile is empty (push disabled).
func NewFCMSender(ctx context.Context, credentialsFile string, logger *slog.Logger) (*FCMSender, error) {
	if credentialsFile == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init fcm client: %w", err)
	}
	return &FCMSender{client: client, logger: logger}, nil
}

// SendBatch delivers the payloads in one SendEach call and returns the
// per-payload success and failure counts. Individual invalid tokens count
// as failures but do not make the call an error; only a total provider
// failure does.
func (s *FCMSender) SendBatch(ctx context.Context, payloads []Payload) (sent, failed int, err error) {
	if s == nil {
		return 0, 0, nil // no-op when not configured
	}
	if len(payloads) == 0 {
		return 0, 0, nil
	}

	messages := make([]*messaging.Message, len(payloads))
	for i, p := range payloads {
		messages[i] = &messaging.Message{
			Token: p.Token,
			Notification: &messaging.Notification{
				Title: p.Title,
				Body:  p.Body,
			},
			Android: &messaging.AndroidConfig{
				Notification: &messaging.AndroidNotification{
					ImageURL: p.ImageURL,
				},
			},
		}
	}

	resp, err := s.client.SendEach(ctx, messages)
	if err != nil {
		return 0, len(payloads), fmt.Errorf("fcm send batch: %w", err)
	}
	if resp.FailureCount > 0 {
		s.logger.Warn("fcm batch partially failed",
			"success", resp.SuccessCount, "failure", resp.FailureCount)
	}
	return resp.SuccessCount, resp.FailureCount, nil
}
