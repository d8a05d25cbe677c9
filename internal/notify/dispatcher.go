// Package notify delivers JSON payloads to external marketing webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/internal/metrics"
	"github.com/Dhoini/workshop-relay/internal/retry"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/google/uuid"
)

const (
	defaultUserAgent = "Workshop-Relay/1.0"
	maxErrorBody     = 512
)

// Result describes a finished dispatch sequence
type Result struct {
	Attempts   int
	StatusCode int // status of the last attempt, 0 on transport error
	Success    bool
}

// Config configures a Dispatcher
type Config struct {
	Name      string // destination label used in logs and metrics
	URL       string
	Source    string // X-Source header value
	UserAgent string
	Policy    retry.Policy
	Timeout   time.Duration // per attempt
}

// Dispatcher POSTs JSON to one destination with bounded retries.
// It is safe for concurrent use.
type Dispatcher struct {
	cfg     Config
	client  *http.Client
	log     *logger.Logger
	metrics metrics.RelayMetrics
}

// NewDispatcher создает диспетчер для одного адреса
func NewDispatcher(cfg Config, client *http.Client, m metrics.RelayMetrics, log *logger.Logger) *Dispatcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Name == "" {
		cfg.Name = cfg.URL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{
		cfg:     cfg,
		client:  client,
		log:     log.With("destination", cfg.Name),
		metrics: m,
	}
}

// Name returns the destination label
func (d *Dispatcher) Name() string {
	return d.cfg.Name
}

// Dispatch marshals payload and sends it
func (d *Dispatcher) Dispatch(ctx context.Context, payload any, headers map[string]string) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("notify: marshal payload: %w", err)
	}
	return d.Send(ctx, body, headers)
}

// Send posts body as is. A non-2xx response or a transport error is a failed
// attempt. After the last failed attempt the returned error wraps
// domain.ErrDispatchFailed.
func (d *Dispatcher) Send(ctx context.Context, body []byte, headers map[string]string) (Result, error) {
	requestID := uuid.NewString()
	start := time.Now()
	var res Result

	attempts, err := retry.Do(ctx, d.cfg.Policy, func(ctx context.Context, attempt int) error {
		status, err := d.post(ctx, body, headers, requestID, attempt)
		res.StatusCode = status
		if err != nil {
			outcome := metrics.OutcomeNetworkError
			if status != 0 {
				outcome = metrics.OutcomeHTTPError
			}
			d.observeAttempt(outcome)
			d.log.Warnw("Webhook attempt failed",
				"attempt", attempt,
				"status", status,
				"request_id", requestID,
				"error", err,
			)
			return err
		}
		d.observeAttempt(metrics.OutcomeSuccess)
		return nil
	}, func(attempt int, _ error, wait time.Duration) {
		d.log.Debugw("Retrying webhook", "next_attempt", attempt+1, "wait", wait)
	})

	res.Attempts = attempts
	res.Success = err == nil
	if d.metrics != nil {
		d.metrics.ObserveDispatch(d.cfg.Name, res.Success, attempts, time.Since(start))
	}

	if err != nil {
		d.log.Errorw("Webhook delivery failed",
			"attempts", attempts,
			"request_id", requestID,
			"error", err,
		)
		return res, fmt.Errorf("%w: %s after %d attempts: %v", domain.ErrDispatchFailed, d.cfg.Name, attempts, err)
	}

	d.log.Infow("Webhook delivered",
		"attempts", attempts,
		"status", res.StatusCode,
		"request_id", requestID,
	)
	return res, nil
}

func (d *Dispatcher) post(ctx context.Context, body []byte, headers map[string]string, requestID string, attempt int) (int, error) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	if d.cfg.Source != "" {
		req.Header.Set("X-Source", d.cfg.Source)
	}
	req.Header.Set("X-Attempt", strconv.Itoa(attempt))
	req.Header.Set("X-Request-ID", requestID)
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (d *Dispatcher) observeAttempt(outcome string) {
	if d.metrics != nil {
		d.metrics.IncDispatchAttempt(d.cfg.Name, outcome)
	}
}
