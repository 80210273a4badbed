package storage

import (
	"time"

	log "github.com/sirupsen/logrus"
)

const requestLogMessage = "tasks.client.request"

type requestMetrics struct {
	logger     *log.Logger
	op         string
	method     string
	start      time.Time
	status     int
	requestID  string
	errorStage string
}

func newRequestMetrics(logger *log.Logger, op, method string) *requestMetrics {
	return &requestMetrics{
		logger: logger,
		op:     op,
		method: method,
		start:  time.Now(),
	}
}

func (m *requestMetrics) SetStatus(status int) {
	m.status = status
}

func (m *requestMetrics) SetRequestID(id string) {
	m.requestID = id
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log emits one structured entry for the finished request.
func (m *requestMetrics) Log(err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"op":       m.op,
		"method":   m.method,
		"status":   m.status,
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.requestID != "" {
		fields["request_id"] = m.requestID
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
		m.logger.WithFields(fields).Warn(requestLogMessage)
		return
	}

	m.logger.WithFields(fields).Info(requestLogMessage)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
