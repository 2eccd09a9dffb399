package httpapi

import (
	"io"
	"net/http"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter sets up HTTP routes. Job routes require apiKey when it is set;
// /version and /metrics are open. Access logs go to accessLog.
func SetupRouter(handler *Handler, apiKey string, gatherer prometheus.Gatherer, accessLog io.Writer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if accessLog == nil {
		accessLog = io.Discard
	}
	logHandler := gorillaHandlers.LoggingHandler

	jobChain := alice.New(
		alice.Constructor(Recovery(handler.logger)),
		alice.Constructor(Authorization(apiKey)),
	)

	r := mux.NewRouter()
	r.Handle("/version", logHandler(accessLog, http.HandlerFunc(handler.GetVersion))).Methods("GET")
	r.Handle("/metrics", logHandler(accessLog, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))).Methods("GET")

	r.Handle("/jobs", logHandler(accessLog, jobChain.ThenFunc(handler.CreateJob))).Methods("POST")
	r.Handle("/jobs/{jobId}", logHandler(accessLog, jobChain.ThenFunc(handler.GetJobStatus))).Methods("GET")
	r.Handle("/jobs/{jobId}/cancel", logHandler(accessLog, jobChain.ThenFunc(handler.CancelJob))).Methods("POST")

	return r
}
