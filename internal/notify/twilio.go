package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/botsentinel/botsentinel/internal/resilience"
)

// DefaultTwilioBaseURL is the Twilio REST API base URL.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioConfig holds configuration for the WhatsApp notifier.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	// From is the Twilio WhatsApp sender number, without the whatsapp: prefix.
	From string
	// To is the operator's WhatsApp number, without the whatsapp: prefix.
	To string
	// BaseURL overrides the API base URL (used by tests).
	BaseURL string
	// HTTPClient overrides the HTTP client. If nil a resilient client with
	// retry is used; alert delivery may retry, unlike checker traffic.
	HTTPClient resilience.Doer
	Logger     zerolog.Logger
}

// TwilioWhatsApp sends operator alerts over WhatsApp through Twilio.
type TwilioWhatsApp struct {
	cfg        TwilioConfig
	baseURL    string
	httpClient resilience.Doer
	logger     zerolog.Logger
}

// NewTwilioWhatsApp creates a WhatsApp notifier.
func NewTwilioWhatsApp(cfg TwilioConfig) *TwilioWhatsApp {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.NotifierClientConfig("twilio"))
	}
	return &TwilioWhatsApp{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Notify delivers the message. Sent only on a 2xx from Twilio.
func (n *TwilioWhatsApp) Notify(ctx context.Context, message string) bool {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.baseURL, n.cfg.AccountSID)

	form := url.Values{}
	form.Set("From", "whatsapp:"+n.cfg.From)
	form.Set("To", "whatsapp:"+n.cfg.To)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		n.logger.Error().Err(err).Msg("whatsapp alert request build failed")
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(n.cfg.AccountSID, n.cfg.AuthToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Msg("whatsapp alert delivery failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Error().Int("status", resp.StatusCode).Msg("whatsapp alert rejected")
		return false
	}
	n.logger.Info().Msg("whatsapp alert delivered")
	return true
}

// Ensure TwilioWhatsApp implements Notifier.
var _ Notifier = (*TwilioWhatsApp)(nil)
