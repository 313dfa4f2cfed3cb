package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

// PushMessage is the device-facing payload handed to the push channel.
type PushMessage struct {
	Title    string
	Body     string
	Data     map[string]string
	Priority string
	Sound    string
}

// PushResult reports the outcome for one device token. Invalid marks
// tokens FCM no longer recognizes; the fan-out prunes those.
type PushResult struct {
	Token     string
	Success   bool
	Invalid   bool
	MessageID string
	Error     string
}

// PushSender is the push channel as the fan-out engine sees it.
type PushSender interface {
	SendToTokens(ctx context.Context, tokens []string, message PushMessage) ([]PushResult, error)
}

// PushService delivers push notifications through Firebase Cloud Messaging.
type PushService struct {
	client *messaging.Client
}

func NewPushService(credentialsFile string) (*PushService, error) {
	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %w", err)
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize FCM client: %w", err)
	}

	return &PushService{client: client}, nil
}

// SendToTokens sends one multicast message and maps FCM's per-token
// responses back to the caller. A transport-level failure returns an
// error; per-token failures come back in the results.
func (ps *PushService) SendToTokens(ctx context.Context, tokens []string, message PushMessage) ([]PushResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	multicast := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: message.Title,
			Body:  message.Body,
		},
		Data: message.Data,
		Android: &messaging.AndroidConfig{
			Priority: androidPriority(message.Priority),
			Notification: &messaging.AndroidNotification{
				Sound: message.Sound,
				Icon:  "ic_notification",
				Color: "#D7263D",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: message.Title,
						Body:  message.Body,
					},
					Sound: message.Sound,
				},
			},
		},
	}

	response, err := ps.client.SendMulticast(ctx, multicast)
	if err != nil {
		return nil, err
	}

	results := make([]PushResult, len(tokens))
	for i, resp := range response.Responses {
		results[i] = PushResult{
			Token:     tokens[i],
			Success:   resp.Success,
			MessageID: resp.MessageID,
		}
		if resp.Error != nil {
			results[i].Error = resp.Error.Error()
			results[i].Invalid = messaging.IsRegistrationTokenNotRegistered(resp.Error) ||
				messaging.IsInvalidArgument(resp.Error)
		}
	}
	return results, nil
}

func androidPriority(priority string) string {
	switch priority {
	case "high", "urgent":
		return "high"
	default:
		return "normal"
	}
}
