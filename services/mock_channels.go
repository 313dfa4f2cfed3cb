package services

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Mock channel senders log instead of delivering. They stand in when a
// provider is not configured, which keeps local development working
// without Firebase, Twilio or SMTP credentials.

type MockPushSender struct{}

func NewMockPushSender() *MockPushSender { return &MockPushSender{} }

func (m *MockPushSender) SendToTokens(ctx context.Context, tokens []string, message PushMessage) ([]PushResult, error) {
	logrus.WithFields(logrus.Fields{
		"tokens": len(tokens),
		"title":  message.Title,
	}).Info("Mock push notification")

	results := make([]PushResult, len(tokens))
	for i, token := range tokens {
		results[i] = PushResult{Token: token, Success: true}
	}
	return results, nil
}

type MockSMSSender struct{}

func NewMockSMSSender() *MockSMSSender { return &MockSMSSender{} }

func (m *MockSMSSender) SendSMS(ctx context.Context, to, body string) error {
	logrus.WithField("to", to).Info("Mock SMS")
	return nil
}

type MockEmailSender struct{}

func NewMockEmailSender() *MockEmailSender { return &MockEmailSender{} }

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	logrus.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("Mock email")
	return nil
}
