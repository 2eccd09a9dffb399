package job

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NewQueueLengthGauge reports the number of jobs waiting in s. It is
// registered on reg when reg is not nil.
func NewQueueLengthGauge(reg prometheus.Registerer, s *Store) prometheus.GaugeFunc {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pvoutput",
		Name:      "job_queue_length",
		Help:      "Jobs queued and not yet picked up by the worker.",
	}, func() float64 {
		return float64(s.QueueLen())
	})

	if reg != nil {
		reg.MustRegister(g)
	}
	return g
}
