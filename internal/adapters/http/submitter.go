package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bft-labs/offsync/internal/domain"
	"github.com/bft-labs/offsync/internal/ports"
)

const (
	apiPrefix = "/v1/"

	headerIdempotencyKey = "Idempotency-Key"
	headerSession        = "X-Offsync-Session"
	headerEnqueuedAt     = "X-Offsync-Enqueued-At"

	// codeDuplicate is returned with 409 when the idempotency key was
	// already applied.
	codeDuplicate = "duplicate"

	maxErrorBody = 4 << 10
)

// Config holds the per-session values attached to every request.
type Config struct {
	ServiceURL string
	AuthKey    string
	SessionID  string
}

// Submitter implements ports.Submitter over a REST API:
// create → POST, update → PATCH, delete → DELETE on /v1/{entity}.
type Submitter struct {
	client ports.HTTPClient
	cfg    Config
	logger ports.Logger
}

// NewSubmitter creates a new HTTP submitter.
func NewSubmitter(client ports.HTTPClient, cfg Config, logger ports.Logger) *Submitter {
	cfg.ServiceURL = strings.TrimRight(cfg.ServiceURL, "/")
	return &Submitter{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// errorBody is the JSON error shape the backend may return.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Submit sends a single operation.
func (s *Submitter) Submit(ctx context.Context, op domain.Operation) error {
	method, err := methodFor(op.Kind)
	if err != nil {
		return domain.RejectionError("invalid_kind", err)
	}

	endpoint := s.cfg.ServiceURL + apiPrefix + url.PathEscape(op.EntityType)

	var body io.Reader
	if len(op.Payload) > 0 {
		body = bytes.NewReader(op.Payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return domain.RejectionError("bad_request", fmt.Errorf("create request: %w", err))
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerIdempotencyKey, op.ID)
	req.Header.Set(headerEnqueuedAt, op.EnqueuedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	if s.cfg.SessionID != "" {
		req.Header.Set(headerSession, s.cfg.SessionID)
	}
	if s.cfg.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.AuthKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.NetworkError(transportReason(err), fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return s.classify(op, resp.StatusCode, respBody)
}

// classify maps a non-2xx response to a SubmitError.
func (s *Submitter) classify(op domain.Operation, status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	if status == http.StatusConflict && eb.Code == codeDuplicate {
		s.logger.Info("backend already applied operation", ports.Op(op.ID, op.EntityType, string(op.Kind))...)
		return nil
	}

	reason := fmt.Sprintf("http_%d", status)
	if eb.Code != "" {
		reason += ":" + eb.Code
	}
	err := fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))

	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return domain.NetworkError(reason, err)
	default:
		return domain.RejectionError(reason, err)
	}
}

func methodFor(kind domain.OperationKind) (string, error) {
	switch kind {
	case domain.KindCreate:
		return http.MethodPost, nil
	case domain.KindUpdate:
		return http.MethodPatch, nil
	case domain.KindDelete:
		return http.MethodDelete, nil
	default:
		return "", fmt.Errorf("unknown operation kind %q", kind)
	}
}

func transportReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return "timeout"
	}
	return "unreachable"
}
