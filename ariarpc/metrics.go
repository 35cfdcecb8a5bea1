package ariarpc

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

type clientMetrics struct {
	registry metrics.Registry

	Calls           metrics.Timer
	TransportErrors metrics.Counter
	ProtocolErrors  metrics.Counter
	RemoteErrors    metrics.Counter
}

func newClientMetrics() *clientMetrics {
	r := metrics.NewRegistry()
	return &clientMetrics{
		registry:        r,
		Calls:           metrics.NewRegisteredTimer("calls", r),
		TransportErrors: metrics.NewRegisteredCounter("errors.transport", r),
		ProtocolErrors:  metrics.NewRegisteredCounter("errors.protocol", r),
		RemoteErrors:    metrics.NewRegisteredCounter("errors.remote", r),
	}
}

func (m *clientMetrics) observe(start time.Time, err error) {
	m.Calls.UpdateSince(start)
	switch {
	case err == nil:
	case IsTransport(err):
		m.TransportErrors.Inc(1)
	case IsProtocol(err):
		m.ProtocolErrors.Inc(1)
	case IsRemote(err):
		m.RemoteErrors.Inc(1)
	}
}

// Metrics returns the registry holding call latency and error counters of the client.
func (c *Client) Metrics() metrics.Registry {
	return c.metrics.registry
}
