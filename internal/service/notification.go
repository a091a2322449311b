package service

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

// Notification is one push fan-out unit: a title, a body and the device
// tokens it should reach.
type Notification struct {
	Title     string
	Body      string
	Tokens    []string
	MessageID string
	Channel   string
}

// Dispatcher delivers notifications best-effort. Implementations must never
// return delivery problems to the caller; the message itself is already
// persisted and broadcast by the time a dispatch happens.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification)
}

// FirebaseDispatcher sends multicast pushes through FCM.
type FirebaseDispatcher struct {
	client *messaging.Client
}

func NewFirebaseDispatcher(ctx context.Context, credentialsPath string) (*FirebaseDispatcher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize messaging client: %w", err)
	}

	return &FirebaseDispatcher{client: client}, nil
}

func (d *FirebaseDispatcher) Dispatch(ctx context.Context, n Notification) {
	if len(n.Tokens) == 0 {
		return
	}

	msg := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: map[string]string{
			"messageId": n.MessageID,
			"channel":   n.Channel,
		},
		Tokens: n.Tokens,
	}

	resp, err := d.client.SendMulticast(ctx, msg)
	if err != nil {
		log.Printf("notification dispatch failed: %v", err)
		return
	}

	if resp.FailureCount > 0 {
		log.Printf("notification dispatched: %d ok, %d failed", resp.SuccessCount, resp.FailureCount)
	}
}

// LogDispatcher is used when no Firebase credentials are configured.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, n Notification) {
	log.Printf("notification (no push provider): %q to %d device(s)", n.Title, len(n.Tokens))
}
