package dmcc

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for a DMCC connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// CommandCount indicates the number of DMCC command lines sent.
	CommandCount atomic.Uint64
	// BytesReceived indicates the number of raw bytes read from the socket,
	// before Telnet filtering.
	BytesReceived atomic.Uint64
	// NegotiationCount indicates the number of Telnet options refused.
	NegotiationCount atomic.Uint64
	// SendErrCount indicates the number of failed socket writes.
	SendErrCount atomic.Uint64
}

func (m *ConnectionMetrics) incCommandCount() {
	m.CommandCount.Add(1)
}

func (m *ConnectionMetrics) addBytesReceived(n int) {
	m.BytesReceived.Add(uint64(n))
}

func (m *ConnectionMetrics) incNegotiationCount() {
	m.NegotiationCount.Add(1)
}

func (m *ConnectionMetrics) incSendErrCount() {
	m.SendErrCount.Add(1)
}
