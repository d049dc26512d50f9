package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hoops-sms/internal/models"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioSender sends SMS through the Twilio Messages REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
	log        zerolog.Logger
}

func NewTwilioSender(accountSID, authToken, fromNumber string, log zerolog.Logger) *TwilioSender {
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    twilioAPIBase,
		client:     &http.Client{Timeout: 15 * time.Second},
		log:        log.With().Str("component", "twilio").Logger(),
	}
}

// Send posts one outbound message to the gateway.
func (s *TwilioSender) Send(ctx context.Context, member models.Member, text string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	form := url.Values{}
	form.Set("To", member.Phone)
	form.Set("From", s.fromNumber)
	form.Set("Body", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway rejected message: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	s.log.Debug().Str("to", member.Phone).Msg("Message sent")
	return nil
}
