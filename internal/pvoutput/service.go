package pvoutput

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/ryabkov82/pvoutput-ingest/internal/client"
	"github.com/ryabkov82/pvoutput-ingest/internal/ingest"
)

// Service names of the API endpoints
const (
	ServiceSearch    = "search"
	ServiceStatus    = "getstatus"
	ServiceSystem    = "getsystem"
	ServiceStatistic = "getstatistic"
)

// StatusLimit is the most status records the API returns for one day,
// one per five minute interval.
const StatusLimit = 288

// ErrEmptyResponse is returned when a single-record endpoint returns no records
var ErrEmptyResponse = errors.New("empty response")

// Querier runs one quota-aware query. *client.Client implements it.
type Querier interface {
	Query(ctx context.Context, req client.QueryRequest, waitIfQuotaExceeded bool) (string, error)
}

var _ Querier = (*client.Client)(nil)

type callOptions struct {
	waitIfQuotaExceeded bool
}

// CallOption adjusts a single endpoint call
type CallOption func(*callOptions)

// NoQuotaWait makes the call fail with *client.QuotaExceededError instead of
// waiting for the quota to reset.
func NoQuotaWait() CallOption {
	return func(o *callOptions) {
		o.waitIfQuotaExceeded = false
	}
}

// Service exposes the endpoints as typed calls
type Service struct {
	querier Querier
	clock   clock.PassiveClock
	logger  *zap.SugaredLogger
}

// NewService creates a service on top of q
func NewService(q Querier, clk clock.PassiveClock, logger *zap.SugaredLogger) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{querier: q, clock: clk, logger: logger}
}

// Search finds systems matching query near latLon ("lat,lon").
// The result is keyed by system_id.
func (s *Service) Search(ctx context.Context, query, latLon string, opts ...CallOption) (*ingest.Table, error) {
	req := client.NewQueryRequest(ServiceSearch,
		client.P("q", query),
		client.P("ll", latLon),
		client.P("country", 1),
	)
	return s.fetch(ctx, req, SearchSchema, "\n", ",", opts)
}

// SystemStatus returns one day of status readings for systemID, keyed and
// sorted by datetime. date is YYYYMMDD and must not be in the future.
func (s *Service) SystemStatus(ctx context.Context, systemID int, date string, opts ...CallOption) (*ingest.Table, error) {
	if err := CheckDate(date, s.clock.Now()); err != nil {
		return nil, err
	}

	req := client.NewQueryRequest(ServiceStatus,
		client.P("d", date),
		client.P("h", 1),
		client.P("limit", StatusLimit),
		client.P("ext", 0),
		client.P("sid1", systemID),
	)
	table, err := s.fetch(ctx, req, StatusSchema, ";", ",", opts)
	if err != nil {
		return nil, err
	}
	table.SortByKey()
	return table, nil
}

// SystemMetadata returns the description of systemID
func (s *Service) SystemMetadata(ctx context.Context, systemID int, opts ...CallOption) (ingest.Row, error) {
	req := client.NewQueryRequest(ServiceSystem,
		client.P("array2", 1),
		client.P("tariffs", 0),
		client.P("teams", 0),
		client.P("est", 0),
		client.P("donations", 0),
		client.P("sid1", systemID),
		client.P("ext", 0),
	)
	return s.fetchRow(ctx, req, systemID, MetadataSchema, ";", opts)
}

// SystemStatistic returns lifetime summary statistics of systemID
func (s *Service) SystemStatistic(ctx context.Context, systemID int, opts ...CallOption) (ingest.Row, error) {
	req := client.NewQueryRequest(ServiceStatistic,
		client.P("c", 0),
		client.P("crdr", 0),
		client.P("sid1", systemID),
	)
	return s.fetchRow(ctx, req, systemID, StatisticSchema, "\n", opts)
}

func (s *Service) fetch(ctx context.Context, req client.QueryRequest, schema ingest.Schema, recordDelim, fieldDelim string, opts []CallOption) (*ingest.Table, error) {
	o := callOptions{waitIfQuotaExceeded: true}
	for _, opt := range opts {
		opt(&o)
	}

	text, err := s.querier.Query(ctx, req, o.waitIfQuotaExceeded)
	if err != nil {
		return nil, err
	}

	table, err := ingest.Decode(text, schema, recordDelim, fieldDelim)
	if err != nil {
		s.logger.Errorw("error decoding response", "service", req.Service, "error", err)
		return nil, fmt.Errorf("%s: %w", req.Service, err)
	}

	s.logger.Debugw("decoded response", "service", req.Service, "rows", table.Len())
	return table, nil
}

func (s *Service) fetchRow(ctx context.Context, req client.QueryRequest, systemID int, schema ingest.Schema, recordDelim string, opts []CallOption) (ingest.Row, error) {
	table, err := s.fetch(ctx, req, schema, recordDelim, ",", opts)
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, fmt.Errorf("%s for system %d: %w", req.Service, systemID, ErrEmptyResponse)
	}

	row := table.Rows[0]
	row["system_id"] = int64(systemID)
	return row, nil
}
