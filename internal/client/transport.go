package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/ryabkov82/pvoutput-ingest/internal/version"
)

const (
	HeaderAPIKey         = "X-Pvoutput-Apikey"
	HeaderSystemID       = "X-Pvoutput-SystemId"
	HeaderRateLimit      = "X-Rate-Limit"
	HeaderRateRemaining  = "X-Rate-Limit-Remaining"
	HeaderRateLimitReset = "X-Rate-Limit-Reset"
)

// RetryPolicy bounds transport retries per failure class
type RetryPolicy struct {
	Connect    int // connection failures; high so multi-hour outages are survived
	Read       int // failures after the connection was established
	Status     int // 500, 502, 503 and 504 responses
	Backoff    time.Duration
	BackoffMax time.Duration
}

// DefaultRetryPolicy tolerates roughly 24 hours of connection failures
// (720 retries at the 120s backoff cap).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Connect:    720,
		Read:       5,
		Status:     5,
		Backoff:    500 * time.Millisecond,
		BackoffMax: 120 * time.Second,
	}
}

// maxRetries is the overall retry ceiling across all classes
func (p RetryPolicy) maxRetries() int {
	n := p.Connect
	if p.Read > n {
		n = p.Read
	}
	if p.Status > n {
		n = p.Status
	}
	return n
}

// backoff returns the delay before the given retry (1-based)
func (p RetryPolicy) backoff(retry int) time.Duration {
	if retry < 1 || p.Backoff <= 0 {
		return 0
	}
	if retry > 32 {
		return p.BackoffMax
	}
	d := p.Backoff * time.Duration(1<<uint(retry-1))
	if d > p.BackoffMax || d <= 0 {
		d = p.BackoffMax
	}
	return d
}

var retryableStatus = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Transport issues GET requests with bounded automatic retry. It does not
// interpret status codes beyond deciding whether to retry.
type Transport struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	systemID string
	policy   RetryPolicy
	clock    clock.Clock
	logger   *zap.SugaredLogger
	metrics  *Metrics
}

// NewTransport creates a transport. A nil logger disables logging, a nil
// clock uses the wall clock.
func NewTransport(httpClient *http.Client, baseURL, apiKey, systemID string, policy RetryPolicy, clk clock.Clock, logger *zap.SugaredLogger, metrics *Metrics) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Transport{
		client:   httpClient,
		baseURL:  baseURL,
		apiKey:   apiKey,
		systemID: systemID,
		policy:   policy,
		clock:    clk,
		logger:   logger,
		metrics:  metrics,
	}
}

// Send performs the request, retrying transient failures. Any status code
// outside the retryable set is returned as-is. Once a retry budget is
// exhausted a *NetworkError is returned.
func (t *Transport) Send(ctx context.Context, req QueryRequest) (*RawResponse, error) {
	url := req.URL(t.baseURL)
	ceiling := t.policy.maxRetries()
	var connectFails, readFails, statusFails int

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := t.sleep(ctx, t.policy.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		t.metrics.IncRequest(req.Service)
		resp, connected, err := t.sendOnce(ctx, req.Service, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			reason := ReasonRead
			used, budget := 0, t.policy.Read
			if !connected || isConnectError(err) {
				reason = ReasonConnect
				connectFails++
				used, budget = connectFails, t.policy.Connect
			} else {
				readFails++
				used = readFails
			}

			if used > budget || attempt >= ceiling {
				return nil, &NetworkError{Service: req.Service, Attempts: attempt + 1, Reason: reason, Err: err}
			}
			t.logger.Warnw("request failed, retrying",
				"service", req.Service, "reason", reason, "attempt", attempt+1, "error", err)
			t.metrics.IncRetry(req.Service, reason)
			continue
		}

		if retryableStatus[resp.StatusCode] {
			statusFails++
			if statusFails > t.policy.Status || attempt >= ceiling {
				return nil, &NetworkError{
					Service:  req.Service,
					Attempts: attempt + 1,
					Reason:   ReasonStatus,
					Response: resp,
					Err:      fmt.Errorf("HTTP %d", resp.StatusCode),
				}
			}
			t.logger.Warnw("retryable status, retrying",
				"service", req.Service, "statusCode", resp.StatusCode, "attempt", attempt+1)
			t.metrics.IncRetry(req.Service, ReasonStatus)
			continue
		}

		return resp, nil
	}
}

// sendOnce performs one exchange and reads the full body. connected reports
// whether a connection was obtained; failures before that, including a dial
// that outlives the client timeout, count as connect failures.
func (t *Transport) sendOnce(ctx context.Context, service, url string) (resp *RawResponse, connected bool, err error) {
	var gotConn atomic.Bool
	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { gotConn.Store(true) },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request error: %w", err)
	}
	req.Header.Set(HeaderAPIKey, t.apiKey)
	req.Header.Set(HeaderSystemID, t.systemID)
	req.Header.Set(HeaderRateLimit, "1")
	req.Header.Set("User-Agent", version.UserAgent())

	start := t.clock.Now()
	httpResp, err := t.client.Do(req)
	if err != nil {
		return nil, gotConn.Load(), fmt.Errorf("http error: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body error: %w", err)
	}
	t.metrics.ObserveResponse(service, httpResp.StatusCode, t.clock.Since(start))

	t.logger.Debugw("response", "service", service, "statusCode", httpResp.StatusCode, "headers", httpResp.Header)

	return &RawResponse{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, true, nil
}

func (t *Transport) sleep(ctx context.Context, d time.Duration) error {
	return sleepContext(ctx, t.clock, d)
}

// sleepContext waits d on clk, returning early with ctx.Err() on cancellation
func sleepContext(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := clk.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// isConnectError reports whether err happened before a connection was established
func isConnectError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
