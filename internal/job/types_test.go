package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ryabkov82/pvoutput-ingest/internal/client"
	"github.com/ryabkov82/pvoutput-ingest/internal/ingest"
	"github.com/ryabkov82/pvoutput-ingest/internal/pvoutput"
)

func TestRequestValidate(t *testing.T) {
	now := time.Date(2019, 5, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"status", Request{Kind: KindStatus, SystemID: 1, Date: "20190519"}, false},
		{"status future date", Request{Kind: KindStatus, SystemID: 1, Date: "20991231"}, true},
		{"status bad date", Request{Kind: KindStatus, SystemID: 1, Date: "2019-05-19"}, true},
		{"status without system", Request{Kind: KindStatus, Date: "20190519"}, true},
		{"system", Request{Kind: KindSystem, SystemID: 7}, false},
		{"statistic without system", Request{Kind: KindStatistic}, true},
		{"search", Request{Kind: KindSearch, Query: "5km", LatLon: "51.7,-1.2"}, false},
		{"search without query", Request{Kind: KindSearch, LatLon: "51.7,-1.2"}, true},
		{"search with delimiter in query", Request{Kind: KindSearch, Query: "5km&x=1"}, true},
		{"unknown kind", Request{Kind: "output", SystemID: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(now)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrorNone},
		{"canceled", fmt.Errorf("wrapped: %w", context.Canceled), ErrorCanceled},
		{"network", &client.NetworkError{Service: "getstatus", Reason: client.ReasonConnect, Err: errors.New("refused")}, ErrorNetwork},
		{"decode", &client.DecodeError{Charset: "windows-1252", Byte: 0x81}, ErrorDecode},
		{"no status", &client.NoStatusFoundError{}, ErrorNoStatus},
		{"quota", &client.QuotaExceededError{}, ErrorQuota},
		{"http", &client.HTTPError{StatusCode: http.StatusUnauthorized}, ErrorHTTP},
		{"malformed", fmt.Errorf("getstatus: %w", &ingest.MalformedRecordError{}), ErrorMalformed},
		{"empty", fmt.Errorf("getsystem: %w", pvoutput.ErrEmptyResponse), ErrorMalformed},
		{"coercion", &ingest.TypeCoercionError{Err: errors.New("bad")}, ErrorCoercion},
		{"invalid date", pvoutput.CheckDate("nope", time.Now()), ErrorValidation},
		{"key range", &ingest.KeyRangeError{}, ErrorValidation},
		{"other", errors.New("boom"), ErrorInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
