package client

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/ryabkov82/pvoutput-ingest/internal/test"
)

func quotaHeader(remaining string, reset time.Time) http.Header {
	h := http.Header{}
	if remaining != "" {
		h.Set(HeaderRateRemaining, remaining)
	}
	if !reset.IsZero() {
		h.Set(HeaderRateLimitReset, strconv.FormatInt(reset.Unix(), 10))
	}
	return h
}

func TestClassify(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		description string
		code        int
		header      http.Header
		body        string
		kind        OutcomeKind
		text        string
		wait        time.Duration
	}{
		{"success trims body", 200, http.Header{}, "  5,10;6,11\r\n", OutcomeOK, "5,10;6,11", 0},
		{"success with exhausted quota", 200, quotaHeader("0", now), "x", OutcomeOK, "x", 0},
		{"400 is no status", 400, http.Header{}, "Bad request 400: No status found", OutcomeNoStatusFound, "Bad request 400: No status found", 0},
		{"400 ignores quota headers", 400, quotaHeader("0", now.Add(time.Hour)), "", OutcomeNoStatusFound, "", 0},
		{"403 quota exceeded", 403, quotaHeader("0", now.Add(10*time.Minute)), "Forbidden 403: Exceeded 60 requests per hour", OutcomeQuotaExceeded, "Forbidden 403: Exceeded 60 requests per hour", 13 * time.Minute},
		{"403 negative remaining", 403, quotaHeader("-1", now.Add(time.Minute)), "", OutcomeQuotaExceeded, "", 4 * time.Minute},
		{"403 reset slightly in the past", 403, quotaHeader("0", now.Add(-time.Minute)), "", OutcomeQuotaExceeded, "", 2 * time.Minute},
		{"403 reset long ago floors at zero", 403, quotaHeader("0", now.Add(-time.Hour)), "", OutcomeQuotaExceeded, "", 0},
		{"403 missing reset waits the margin", 403, quotaHeader("0", time.Time{}), "", OutcomeQuotaExceeded, "", 3 * time.Minute},
		{"403 with quota left", 403, quotaHeader("12", now), "Forbidden 403: Invalid API Key", OutcomeHTTPError, "Forbidden 403: Invalid API Key", 0},
		{"403 without quota header", 403, http.Header{}, "", OutcomeHTTPError, "", 0},
		{"403 with invalid quota header", 403, quotaHeader("many", now), "", OutcomeHTTPError, "", 0},
		{"401 unauthorized", 401, http.Header{}, "Unauthorized 401: Invalid System ID", OutcomeHTTPError, "Unauthorized 401: Invalid System ID", 0},
		{"404 not found", 404, http.Header{}, "", OutcomeHTTPError, "", 0},
		{"301 redirect", 301, http.Header{}, "", OutcomeHTTPError, "", 0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.description, func(t *testing.T) {
			clk := clocktesting.NewFakePassiveClock(now)
			c := NewClassifier(Latin1, DefaultSafetyMargin, clk, nil)

			resp := &RawResponse{StatusCode: tc.code, Header: tc.header, Body: []byte(tc.body)}
			outcome, err := c.Classify(resp)

			require.NoError(t, err)
			assert.Equal(t, tc.kind, outcome.Kind)
			assert.Equal(t, tc.text, outcome.Text)
			assert.Equal(t, tc.wait, outcome.Wait)
			assert.Same(t, resp, outcome.Response)
		})
	}
}

func TestClassifyQuotaResetIsUTC(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(5 * time.Minute)
	c := NewClassifier(Latin1, DefaultSafetyMargin, clocktesting.NewFakePassiveClock(now), nil)

	outcome, err := c.Classify(&RawResponse{StatusCode: 403, Header: quotaHeader("0", reset)})

	require.NoError(t, err)
	assert.Equal(t, time.UTC, outcome.ResetAt.Location())
	assert.True(t, reset.Equal(outcome.ResetAt))
}

func TestClassifyDecodesLatin1(t *testing.T) {
	c := NewClassifier(Charset{}, DefaultSafetyMargin, nil, nil)

	outcome, err := c.Classify(&RawResponse{StatusCode: 200, Body: []byte{'M', 0xfc, 'n', 'c', 'h', 'e', 'n'}})

	require.NoError(t, err)
	assert.Equal(t, "München", outcome.Text)
}

func TestClassifyDecodeError(t *testing.T) {
	w := &bytes.Buffer{}
	cs, err := LookupCharset("windows-1252")
	require.NoError(t, err)
	c := NewClassifier(cs, DefaultSafetyMargin, nil, test.DummyLogger(w))

	body := []byte{'o', 'k', 0x81}
	_, err = c.Classify(&RawResponse{StatusCode: 200, Body: body})

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr), "want *DecodeError, got %v", err)
	assert.Equal(t, 2, decErr.Offset)
	assert.Equal(t, byte(0x81), decErr.Byte)
	assert.Equal(t, "windows-1252", decErr.Charset)
	assert.Equal(t, body, decErr.Body)
	assert.Contains(t, w.String(), "error decoding response body")
}

func TestClassifyLogsRemaining(t *testing.T) {
	w := &bytes.Buffer{}
	c := NewClassifier(Latin1, DefaultSafetyMargin, nil, test.DummyLogger(w))

	_, err := c.Classify(&RawResponse{StatusCode: 200, Header: quotaHeader("57", time.Time{})})

	require.NoError(t, err)
	assert.Contains(t, w.String(), "remaining API requests")
	assert.Contains(t, w.String(), `"remaining": 57`)
}

func TestLookupCharset(t *testing.T) {
	cases := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"ISO-8859-1", "iso-8859-1", false},
		{" latin1 ", "latin1", false},
		{"cp1252", "cp1252", false},
		{"windows-1251", "windows-1251", false},
		{"utf-8", "", true},
		{"shift_jis", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		cs, err := LookupCharset(tc.name)
		if tc.wantErr {
			assert.Error(t, err, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, cs.Name())
	}

	assert.Equal(t, "iso-8859-1", Charset{}.Name())
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "ok", OutcomeOK.String())
	assert.Equal(t, "quota_exceeded", OutcomeQuotaExceeded.String())
	assert.Equal(t, "no_status_found", OutcomeNoStatusFound.String())
	assert.Equal(t, "http_error", OutcomeHTTPError.String())
	assert.Equal(t, "unknown", OutcomeKind(99).String())
}
