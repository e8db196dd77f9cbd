package deliver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/noteshot/capture"
	"github.com/hazyhaar/noteshot/connectivity"
)

// Receipt is the Remote Intake answer to a submission.
type Receipt struct {
	Success      bool   `json:"success"`
	ViewLocation string `json:"viewLocation"`
	ID           string `json:"id"`
}

// Intake accepts one record and says where to view it.
type Intake interface {
	Submit(ctx context.Context, rec capture.Record) (Receipt, error)
}

// HTTPIntake submits records with POST <base>/note.
type HTTPIntake struct {
	endpoint string
	call     connectivity.Handler
	breaker  *connectivity.CircuitBreaker
}

type intakeConfig struct {
	client  *http.Client
	timeout time.Duration
	breaker *connectivity.CircuitBreaker
	logger  *slog.Logger
}

// IntakeOption configures an HTTPIntake.
type IntakeOption func(*intakeConfig)

// WithHTTPClient sets the client used for submissions.
func WithHTTPClient(c *http.Client) IntakeOption {
	return func(ic *intakeConfig) { ic.client = c }
}

// WithIntakeTimeout bounds each submission. Default 10s.
func WithIntakeTimeout(d time.Duration) IntakeOption {
	return func(ic *intakeConfig) { ic.timeout = d }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *connectivity.CircuitBreaker) IntakeOption {
	return func(ic *intakeConfig) { ic.breaker = cb }
}

// WithIntakeLogger sets the transport logger.
func WithIntakeLogger(l *slog.Logger) IntakeOption {
	return func(ic *intakeConfig) { ic.logger = l }
}

// NewHTTPIntake returns an intake client for the service at baseURL.
func NewHTTPIntake(baseURL string, opts ...IntakeOption) *HTTPIntake {
	ic := intakeConfig{timeout: 10 * time.Second, logger: slog.Default()}
	for _, o := range opts {
		o(&ic)
	}
	if ic.breaker == nil {
		ic.breaker = connectivity.NewCircuitBreaker()
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/note"
	call := connectivity.Chain(
		connectivity.Recovery(ic.logger),
		connectivity.Logging(ic.logger, "intake"),
		connectivity.WithCircuitBreaker(ic.breaker, "intake"),
		connectivity.Timeout(ic.timeout, "intake"),
	)(connectivity.HTTPHandler(endpoint, ic.client))

	return &HTTPIntake{endpoint: endpoint, call: call, breaker: ic.breaker}
}

// Endpoint returns the submission URL.
func (h *HTTPIntake) Endpoint() string { return h.endpoint }

// Breaker returns the circuit breaker guarding the intake.
func (h *HTTPIntake) Breaker() *connectivity.CircuitBreaker { return h.breaker }

// Submit sends rec once. Every failure is a TransportFailure.
func (h *HTTPIntake) Submit(ctx context.Context, rec capture.Record) (Receipt, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return Receipt{}, capture.Errorf(capture.KindTransportFailure, "submit", err)
	}
	body, err := h.call(ctx, payload)
	if err != nil {
		return Receipt{}, capture.Errorf(capture.KindTransportFailure, "submit", err)
	}
	var r Receipt
	if err := json.Unmarshal(body, &r); err != nil {
		return Receipt{}, capture.Errorf(capture.KindTransportFailure, "submit",
			fmt.Errorf("decode receipt: %w", err))
	}
	if !r.Success {
		return r, capture.Errorf(capture.KindTransportFailure, "submit", errors.New("intake refused record"))
	}
	return r, nil
}
