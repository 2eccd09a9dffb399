package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/ryabkov82/pvoutput-ingest/internal/ingest"
	"github.com/ryabkov82/pvoutput-ingest/internal/pvoutput"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusCanceled  JobStatus = "canceled"
)

// Finished reports whether the status is terminal
func (s JobStatus) Finished() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Kind selects the endpoint a job fetches from
type Kind string

const (
	KindStatus    Kind = "status"
	KindSystem    Kind = "system"
	KindStatistic Kind = "statistic"
	KindSearch    Kind = "search"
)

// Request describes what a job fetches
type Request struct {
	Kind        Kind   `json:"kind"`
	SystemID    int    `json:"systemId"`
	Date        string `json:"date"`   // YYYYMMDD, status only
	Query       string `json:"query"`  // search only
	LatLon      string `json:"latLon"` // search only
	NoQuotaWait bool   `json:"noQuotaWait"`
}

// Validate checks that the request has the fields its kind needs
func (r Request) Validate(now time.Time) error {
	switch r.Kind {
	case KindStatus:
		if r.SystemID <= 0 {
			return fmt.Errorf("systemId must be > 0")
		}
		if err := pvoutput.CheckDate(r.Date, now); err != nil {
			return err
		}
	case KindSystem, KindStatistic:
		if r.SystemID <= 0 {
			return fmt.Errorf("systemId must be > 0")
		}
	case KindSearch:
		if strings.TrimSpace(r.Query) == "" {
			return fmt.Errorf("query is required")
		}
		if strings.ContainsAny(r.Query+r.LatLon, "&=") {
			return fmt.Errorf("query and latLon must not contain '&' or '='")
		}
	default:
		return fmt.Errorf("unknown kind: %q", r.Kind)
	}
	return nil
}

// Job is a queued fetch and its outcome. The result is held only for the
// submitter to read back.
type Job struct {
	ID         string
	Request    Request
	Status     JobStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	LastError  string
	ErrorKind  ErrorKind
	Result     *ingest.Table
}
