package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker refuses the call.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming.
	Name string

	// Timeout is the per-request timeout.
	// Default: 7 seconds
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the initial call.
	// Health checkers must use 0: a checker observes exactly one request,
	// retry semantics belong to the confirmation protocol above it.
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 200ms
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff interval.
	// Default: 3 seconds
	MaxInterval time.Duration

	// Breaker is the circuit breaker configuration.
	// If nil, DefaultBreakerConfig(Name) is used.
	Breaker *BreakerConfig
}

// CheckerClientConfig returns the configuration used for health-checker
// traffic: bounded timeout, no internal retries.
func CheckerClientConfig(name string, timeout time.Duration) ClientConfig {
	if timeout == 0 {
		timeout = 7 * time.Second
	}
	return ClientConfig{
		Name:       name,
		Timeout:    timeout,
		MaxRetries: 0,
	}
}

// NotifierClientConfig returns the configuration used for alert delivery,
// where a couple of retries are acceptable.
func NotifierClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     3 * time.Second,
	}
}

// Client is an HTTP client with circuit breaker protection and optional
// retry-with-backoff on transient failures.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 3 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type param, not response
		config:     cfg,
	}
}

// Do executes the request through the circuit breaker. Transient failures
// (network errors, 5xx) are retried up to MaxRetries times with exponential
// backoff; with MaxRetries 0 exactly one attempt is made.
// The caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries bounded by WithMaxRetries, not wall clock

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			attempt := req.Clone(ctx)
			// Clone shares the consumed Body; rebuild it so a retried
			// request does not go out with an empty payload.
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				attempt.Body = body
			}
			r, err := c.httpClient.Do(attempt)
			if err != nil {
				return nil, err
			}
			// 5xx counts as a failure for the breaker and is retryable.
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		// A 5xx that exhausted retries still carries a usable response.
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}
	return lastResp, nil
}

// ServerError represents an HTTP 5xx response observed by the client.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Doer is the minimal client interface consumed by API clients, satisfied by
// both *Client and *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ Doer = (*Client)(nil)
