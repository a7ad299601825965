package detection

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/darrentmorgan/singura-sub007/pkg/logger"
)

// Notifier is the fire-and-forget telemetry side-channel for findings.
// Delivery is best effort and unordered relative to Analyze's return
// value; nothing may depend on it for correctness.
type Notifier interface {
	NotifyFinding(finding Finding)
	Close() error
}

// ChannelNotifier buffers findings on a bounded channel for in-process
// consumers. When the buffer is full the finding is dropped and counted.
type ChannelNotifier struct {
	findings chan Finding
	dropped  atomic.Uint64
	log      *logger.Logger
}

// NewChannelNotifier creates a channel notifier with the given buffer size.
func NewChannelNotifier(size int, log *logger.Logger) *ChannelNotifier {
	if size <= 0 {
		size = 128
	}
	if log == nil {
		log = logger.NewDefaultLogger("notifier", "")
	}
	return &ChannelNotifier{
		findings: make(chan Finding, size),
		log:      log,
	}
}

// Findings exposes the consumer side of the channel.
func (n *ChannelNotifier) Findings() <-chan Finding {
	return n.findings
}

// NotifyFinding enqueues the finding, dropping it when the buffer is full.
// Findings arrive from concurrent Analyze calls, so the drop counter is
// atomic.
func (n *ChannelNotifier) NotifyFinding(finding Finding) {
	select {
	case n.findings <- finding:
	default:
		n.dropped.Add(1)
		n.log.Warn("notification buffer full, dropped finding %s", finding.PatternID)
	}
}

// Dropped returns how many findings were dropped on a full buffer.
func (n *ChannelNotifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Close closes the channel. Callers must not notify after Close.
func (n *ChannelNotifier) Close() error {
	close(n.findings)
	return nil
}

// NATSNotifier publishes findings to a NATS subject for external
// telemetry consumers. Publish failures are logged, never returned to
// the detection path.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	log     *logger.Logger
}

// NewNATSNotifier creates a NATS-backed notifier.
func NewNATSNotifier(conn *nats.Conn, subject string, log *logger.Logger) (*NATSNotifier, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if subject == "" {
		subject = "singura.findings"
	}
	if log == nil {
		log = logger.NewDefaultLogger("notifier", "")
	}
	return &NATSNotifier{conn: conn, subject: subject, log: log}, nil
}

// NotifyFinding publishes the finding as JSON with identifying headers.
func (n *NATSNotifier) NotifyFinding(finding Finding) {
	if !n.conn.IsConnected() {
		n.log.Warn("nats disconnected, dropped finding %s", finding.PatternID)
		return
	}

	data, err := json.Marshal(finding)
	if err != nil {
		n.log.Error("failed to marshal finding %s: %v", finding.PatternID, err)
		return
	}

	header := nats.Header{}
	header.Set("x-pattern-id", finding.PatternID.String())
	header.Set("x-pattern-type", string(finding.PatternType))
	header.Set("x-risk-level", string(finding.RiskLevel))
	header.Set("x-detector", finding.DetectorName)

	msg := &nats.Msg{Subject: n.subject, Data: data, Header: header}
	if err := n.conn.PublishMsg(msg); err != nil {
		n.log.Error("failed to publish finding %s: %v", finding.PatternID, err)
	}
}

// Close drains and closes the underlying connection.
func (n *NATSNotifier) Close() error {
	return n.conn.Drain()
}

// MultiNotifier fans a finding out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyFinding(finding Finding) {
	for _, notifier := range m {
		notifier.NotifyFinding(finding)
	}
}

func (m MultiNotifier) Close() error {
	var firstErr error
	for _, notifier := range m {
		if err := notifier.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
