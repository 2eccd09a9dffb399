package job

import (
	"context"
	"errors"

	"github.com/ryabkov82/pvoutput-ingest/internal/client"
	"github.com/ryabkov82/pvoutput-ingest/internal/ingest"
	"github.com/ryabkov82/pvoutput-ingest/internal/pvoutput"
)

// ErrorKind classifies why a job failed
type ErrorKind string

const (
	ErrorNone       ErrorKind = ""
	ErrorNetwork    ErrorKind = "network"
	ErrorDecode     ErrorKind = "decode"
	ErrorNoStatus   ErrorKind = "no_status"
	ErrorQuota      ErrorKind = "quota"
	ErrorHTTP       ErrorKind = "http"
	ErrorMalformed  ErrorKind = "malformed"
	ErrorCoercion   ErrorKind = "coercion"
	ErrorValidation ErrorKind = "validation"
	ErrorCanceled   ErrorKind = "canceled"
	ErrorInternal   ErrorKind = "internal"
)

// KindOf maps an error returned by the fetch pipeline to its ErrorKind
func KindOf(err error) ErrorKind {
	var (
		netErr       *client.NetworkError
		decodeErr    *client.DecodeError
		noStatusErr  *client.NoStatusFoundError
		quotaErr     *client.QuotaExceededError
		httpErr      *client.HTTPError
		malformedErr *ingest.MalformedRecordError
		coercionErr  *ingest.TypeCoercionError
		rangeErr     *ingest.KeyRangeError
	)

	switch {
	case err == nil:
		return ErrorNone
	case errors.Is(err, context.Canceled):
		return ErrorCanceled
	case errors.As(err, &netErr):
		return ErrorNetwork
	case errors.As(err, &decodeErr):
		return ErrorDecode
	case errors.As(err, &noStatusErr):
		return ErrorNoStatus
	case errors.As(err, &quotaErr):
		return ErrorQuota
	case errors.As(err, &httpErr):
		return ErrorHTTP
	case errors.As(err, &malformedErr), errors.Is(err, pvoutput.ErrEmptyResponse):
		return ErrorMalformed
	case errors.As(err, &coercionErr):
		return ErrorCoercion
	case errors.Is(err, pvoutput.ErrInvalidDate), errors.As(err, &rangeErr):
		return ErrorValidation
	default:
		return ErrorInternal
	}
}
