package services

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender is the SMS channel as the fan-out engine sees it.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// SMSService delivers text messages through Twilio.
type SMSService struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewSMSService(accountSID, authToken, fromNumber string) *SMSService {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMSService{
		client:     client,
		fromNumber: fromNumber,
	}
}

func (ss *SMSService) SendSMS(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(ss.fromNumber)
	params.SetBody(body)

	if _, err := ss.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send to %s: %w", to, err)
	}
	return nil
}
