// internal/messaging/twilio.go
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"readerspace/internal/membership"
)

const DefaultBaseURL = "https://api.twilio.com"

// DeliveryError is a message the provider refused or could not accept.
// Error returns the provider's reason unchanged.
type DeliveryError struct {
	StatusCode int
	Code       int
	Reason     string
}

func (e *DeliveryError) Error() string {
	return e.Reason
}

// TwilioConfig holds the account credentials and sender number.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

// TwilioClient sends SMS and WhatsApp messages through the Twilio Messages API.
type TwilioClient struct {
	cfg        TwilioConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewTwilioClient returns a client for cfg. A nil httpClient uses a client
// with a 10 second timeout.
func NewTwilioClient(cfg TwilioConfig, httpClient *http.Client, logger *slog.Logger) (*TwilioClient, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, errors.New("twilio account sid, auth token and sender are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "twilio-messages",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		// Refused messages (bad number, unverified recipient) say nothing about provider health.
		IsSuccessful: func(err error) bool {
			var deliveryErr *DeliveryError
			if errors.As(err, &deliveryErr) {
				return deliveryErr.StatusCode != 0 && deliveryErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &TwilioClient{
		cfg:        cfg,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
		tracer:     otel.Tracer("readerspace/messaging"),
	}, nil
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send posts body to the recipient. It is attempted once.
func (c *TwilioClient) Send(ctx context.Context, to, body string) (*membership.Delivery, error) {
	ctx, span := c.tracer.Start(ctx, "messaging.twilio.send",
		trace.WithAttributes(attribute.String("message.to", to)),
	)
	defer span.End()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, to, body)
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &DeliveryError{Reason: err.Error()}
		}
		return nil, err
	}

	msg := result.(*twilioMessage)
	span.SetAttributes(attribute.String("message.sid", msg.SID))
	return &membership.Delivery{ProviderID: msg.SID, Status: msg.Status}, nil
}

func (c *TwilioClient) post(ctx context.Context, to, body string) (*twilioMessage, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.AccountSID))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.cfg.From)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DeliveryError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &DeliveryError{StatusCode: resp.StatusCode, Reason: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr twilioError
		if err := json.Unmarshal(payload, &apiErr); err != nil || apiErr.Message == "" {
			return nil, &DeliveryError{
				StatusCode: resp.StatusCode,
				Reason:     fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			}
		}
		return nil, &DeliveryError{StatusCode: resp.StatusCode, Code: apiErr.Code, Reason: apiErr.Message}
	}

	var msg twilioMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decode message response: %w", err)
	}

	c.logger.DebugContext(ctx, "message accepted", "sid", msg.SID, "status", msg.Status)
	return &msg, nil
}

var _ membership.Messenger = (*TwilioClient)(nil)
