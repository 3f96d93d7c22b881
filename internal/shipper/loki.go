// Package shipper implements the buffered remote log pipeline: log lines are
// echoed to the local console immediately, queued in a FIFO buffer, and
// delivered in batches to a Loki-compatible push endpoint on a coalesced
// timer. Delivery is best-effort — a failed push discards its batch rather
// than retrying, because the pipeline must never block or loop on a broken
// transport. The durable record of privileged actions lives in
// internal/auditlog, not here.
package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/logrelay/logrelay/internal/telemetry"
)

// Level is the severity of one log line.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// pushPath is the Loki push API route appended to the configured endpoint.
const pushPath = "/loki/api/v1/push"

// Static stream labels attached to every batch alongside the configured
// environment tag.
const (
	labelJob            = "logrelay"
	labelContainer      = "logrelay-app"
	labelComposeService = "app"
)

// Line is one buffered log event. Lines are immutable once enqueued.
type Line struct {
	Level     Level
	Message   string
	Timestamp time.Time
	Labels    map[string]string
}

// Config holds shipper configuration.
type Config struct {
	// Enabled gates remote shipping. Shipping is active only when Enabled is
	// true AND Endpoint is non-empty; console echo happens regardless.
	Enabled bool
	// Endpoint is the base URL of the push service (no path).
	Endpoint string
	// Environment is attached as a stream label so the aggregation backend can
	// separate deployments.
	Environment string
	// FlushDelay is how long the coalescing timer waits before draining the
	// buffer. Zero means DefaultFlushDelay.
	FlushDelay time.Duration
	// Timeout bounds one push request. Zero means DefaultTimeout.
	Timeout time.Duration
}

const (
	DefaultFlushDelay = time.Second
	DefaultTimeout    = 10 * time.Second
)

// Shipper owns the pending-line buffer, the single flush timer, and the push
// transport. One instance per process; process-wide convenience wrappers live
// in internal/logger.
//
// Buffer lifecycle: empty → Log arms the timer → more Log calls enqueue
// without re-arming → the timer fires (or Flush/Close is called) → the buffer
// is swapped out atomically and one push attempted → empty again. At most one
// timer is armed at any instant, so high log volume cannot proliferate timers.
type Shipper struct {
	cfg    Config
	client *http.Client
	echo   *slog.Logger

	mu    sync.Mutex
	buf   []Line
	timer *time.Timer
}

// New creates a shipper. echo is the local console sink every line is written
// to synchronously; nil means slog.Default().
func New(cfg Config, echo *slog.Logger) *Shipper {
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = DefaultFlushDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if echo == nil {
		echo = slog.Default()
	}
	return &Shipper{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		echo:   echo,
	}
}

// shippingEnabled reports whether lines should be buffered for remote
// delivery.
func (s *Shipper) shippingEnabled() bool {
	return s.cfg.Enabled && s.cfg.Endpoint != ""
}

// Log echoes one line to the console sink immediately and, when shipping is
// enabled, enqueues it and makes sure a flush is scheduled. It never blocks on
// the network and never fails.
func (s *Shipper) Log(level Level, message string, labels map[string]string) {
	attrs := make([]any, 0, 2*len(labels))
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}
	switch level {
	case LevelDebug:
		s.echo.Debug(message, attrs...)
	case LevelWarn:
		s.echo.Warn(message, attrs...)
	case LevelError:
		s.echo.Error(message, attrs...)
	default:
		s.echo.Info(message, attrs...)
	}

	if !s.shippingEnabled() {
		return
	}

	s.mu.Lock()
	s.buf = append(s.buf, Line{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
		Labels:    labels,
	})
	telemetry.ShipperBufferedLines.Set(float64(len(s.buf)))
	if s.timer == nil {
		s.timer = time.AfterFunc(s.cfg.FlushDelay, s.onTimer)
	}
	s.mu.Unlock()
}

// Pending reports the current buffer depth.
func (s *Shipper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// onTimer clears the timer handle so a later Log call can arm a fresh one,
// then drains the buffer.
func (s *Shipper) onTimer() {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	s.Flush(ctx)
}

// Flush swaps out the buffer and attempts one push of its contents. An empty
// buffer is a no-op with no network call. The buffer is reset before the push,
// so a transport failure loses that batch — the failure is reported on the
// console sink and never reaches the caller.
func (s *Shipper) Flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.buf
	s.buf = nil
	telemetry.ShipperBufferedLines.Set(0)
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := s.push(ctx, batch); err != nil {
		telemetry.ShipperFlushFailures.Inc()
		s.echo.Error("log shipping failed, batch dropped", "lines", len(batch), "error", err)
		return
	}
	telemetry.ShipperFlushes.Inc()
	telemetry.ShipperLinesShipped.Add(float64(len(batch)))
}

// Close stops any armed timer and performs one final best-effort flush so the
// buffer tail is not silently lost at process exit. Delivery is still not
// guaranteed when the transport is down.
func (s *Shipper) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	s.Flush(ctx)
}

// pushRequest is the Loki push wire format: one labeled stream with one value
// entry per line, each value a [nanosecond-timestamp-string, payload] pair.
type pushRequest struct {
	Streams []pushStream `json:"streams"`
}

type pushStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

func (s *Shipper) push(ctx context.Context, batch []Line) error {
	values := make([][2]string, 0, len(batch))
	for _, line := range batch {
		payload := make(map[string]string, 2+len(line.Labels))
		payload["level"] = string(line.Level)
		payload["msg"] = line.Message
		for k, v := range line.Labels {
			payload[k] = v
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode log line: %w", err)
		}
		values = append(values, [2]string{
			strconv.FormatInt(line.Timestamp.UnixNano(), 10),
			string(encoded),
		})
	}

	body, err := json.Marshal(pushRequest{
		Streams: []pushStream{{
			Stream: map[string]string{
				"job":             labelJob,
				"container":       labelContainer,
				"environment":     s.cfg.Environment,
				"compose_service": labelComposeService,
			},
			Values: values,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint+pushPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to push log batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
