package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// DefaultBaseURL is the PVOutput service root
const DefaultBaseURL = "https://pvoutput.org/service/r2"

// Options configures a Client
type Options struct {
	BaseURL      string
	APIKey       string
	SystemID     string
	Timeout      time.Duration
	Retry        RetryPolicy
	Charset      Charset
	SafetyMargin time.Duration // zero uses DefaultSafetyMargin
	Clock        clock.Clock
	Logger       *zap.SugaredLogger
	Metrics      *Metrics
	HTTPClient   *http.Client
}

// Client runs quota-aware queries against the API. It is safe for
// concurrent use; all state is read-only after construction.
type Client struct {
	transport  *Transport
	classifier *Classifier
	clock      clock.Clock
	logger     *zap.SugaredLogger
	metrics    *Metrics
}

// NewClient creates a client. APIKey and SystemID are required.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if opts.SystemID == "" {
		return nil, errors.New("system id is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.SafetyMargin == 0 {
		opts.SafetyMargin = DefaultSafetyMargin
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		transport:  NewTransport(opts.HTTPClient, opts.BaseURL, opts.APIKey, opts.SystemID, opts.Retry, opts.Clock, opts.Logger, opts.Metrics),
		classifier: NewClassifier(opts.Charset, opts.SafetyMargin, opts.Clock, opts.Logger),
		clock:      opts.Clock,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}, nil
}

// Query sends req and returns the decoded, trimmed body. When the quota is
// exhausted and waitIfQuotaExceeded is set, it waits once for the quota to
// reset and retries; a second exhaustion is returned as *QuotaExceededError.
func (c *Client) Query(ctx context.Context, req QueryRequest, waitIfQuotaExceeded bool) (string, error) {
	waited := false
	for {
		resp, err := c.transport.Send(ctx, req)
		if err != nil {
			c.logger.Errorw("request failed", "service", req.Service, "error", err)
			return "", err
		}

		if remaining, ok := headerInt(resp.Header, HeaderRateRemaining); ok {
			c.metrics.SetQuotaRemaining(remaining)
		}

		outcome, err := c.classifier.Classify(resp)
		if err != nil {
			return "", err
		}
		c.metrics.ObserveOutcome(req.Service, outcome.Kind)

		switch outcome.Kind {
		case OutcomeOK:
			return outcome.Text, nil

		case OutcomeNoStatusFound:
			return "", &NoStatusFoundError{Body: outcome.Text, Header: resp.Header}

		case OutcomeHTTPError:
			return "", &HTTPError{StatusCode: resp.StatusCode, Body: outcome.Text, Header: resp.Header}

		case OutcomeQuotaExceeded:
			qerr := &QuotaExceededError{
				ResetAt: outcome.ResetAt,
				Wait:    outcome.Wait,
				Body:    outcome.Text,
				Header:  resp.Header,
			}
			if !waitIfQuotaExceeded || waited {
				return "", qerr
			}

			c.logger.Infow(qerr.WaitMessage(c.clock.Now()), "service", req.Service)
			if err := sleepContext(ctx, c.clock, outcome.Wait); err != nil {
				return "", err
			}
			c.metrics.ObserveQuotaWait(outcome.Wait)
			waited = true
		}
	}
}
