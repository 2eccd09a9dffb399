package client

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// DefaultSafetyMargin is added to the server's quota reset time. Retrying at
// the nominal reset time still frequently hits the same quota error.
const DefaultSafetyMargin = 3 * time.Minute

// OutcomeKind tags a classified response
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeQuotaExceeded
	OutcomeNoStatusFound
	OutcomeHTTPError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeQuotaExceeded:
		return "quota_exceeded"
	case OutcomeNoStatusFound:
		return "no_status_found"
	case OutcomeHTTPError:
		return "http_error"
	default:
		return "unknown"
	}
}

// Outcome is the classification of one RawResponse. Text is set for
// OutcomeOK, ResetAt and Wait for OutcomeQuotaExceeded.
type Outcome struct {
	Kind     OutcomeKind
	Text     string
	ResetAt  time.Time
	Wait     time.Duration
	Response *RawResponse
}

// Classifier turns a completed exchange into an Outcome
type Classifier struct {
	charset Charset
	margin  time.Duration
	clock   clock.PassiveClock
	logger  *zap.SugaredLogger
}

// NewClassifier creates a classifier decoding bodies with charset
func NewClassifier(charset Charset, margin time.Duration, clk clock.PassiveClock, logger *zap.SugaredLogger) *Classifier {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Classifier{
		charset: charset,
		margin:  margin,
		clock:   clk,
		logger:  logger,
	}
}

// Classify inspects status code and quota headers. The only error it returns
// is a *DecodeError for a body the charset cannot decode.
func (c *Classifier) Classify(resp *RawResponse) (Outcome, error) {
	text, err := c.charset.Decode(resp.Body)
	if err != nil {
		c.logger.Errorw("error decoding response body", "error", err, "body", resp.Body)
		return Outcome{}, err
	}
	text = strings.TrimSpace(text)

	if resp.StatusCode == http.StatusBadRequest {
		return Outcome{Kind: OutcomeNoStatusFound, Text: text, Response: resp}, nil
	}

	remaining, hasRemaining := headerInt(resp.Header, HeaderRateRemaining)
	if hasRemaining {
		c.logger.Debugw("remaining API requests", "remaining", remaining)
	}

	if resp.StatusCode == http.StatusForbidden && hasRemaining && remaining <= 0 {
		now := c.clock.Now()
		resetAt := now
		if reset, ok := headerInt(resp.Header, HeaderRateLimitReset); ok {
			resetAt = time.Unix(int64(reset), 0).UTC()
		}
		wait := resetAt.Sub(now) + c.margin
		if wait < 0 {
			wait = 0
		}
		return Outcome{Kind: OutcomeQuotaExceeded, Text: text, ResetAt: resetAt, Wait: wait, Response: resp}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{Kind: OutcomeHTTPError, Text: text, Response: resp}, nil
	}

	return Outcome{Kind: OutcomeOK, Text: text, Response: resp}, nil
}

func headerInt(h http.Header, key string) (int, bool) {
	v := strings.TrimSpace(h.Get(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
