// Package webhook delivers job executions to an external HTTP endpoint.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dynsched/internal/platform/httpclient"
	"dynsched/internal/scheduler"
	"dynsched/internal/shared"
)

// SignatureHeader carries the HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Dynsched-Signature"

// ErrNoExecution is returned when the context carries no execution metadata.
var ErrNoExecution = errors.New("webhook: execution metadata missing in context")

// Payload is the webhook request body.
type Payload struct {
	Job         string    `json:"job"`
	Cron        string    `json:"cron"`
	ExecutionID string    `json:"executionId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	FiredAt     time.Time `json:"firedAt"`
}

// Sink posts a Payload per execution.
type Sink struct {
	client *httpclient.Client
	url    string
	secret []byte
	log    *slog.Logger
}

// New creates a Sink. An empty secret disables signing.
func New(client *httpclient.Client, url, secret string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	s := &Sink{
		client: client,
		url:    url,
		log:    log.With("component", "webhook"),
	}
	if secret != "" {
		s.secret = []byte(secret)
	}
	return s
}

// Deliver sends the execution stored in ctx. It fits a scheduler.Task.
func (s *Sink) Deliver(ctx context.Context) error {
	exec, ok := scheduler.ExecutionFromContext(ctx)
	if !ok {
		return ErrNoExecution
	}
	return s.Send(ctx, exec)
}

// Send posts one execution. Retries reuse the execution ID as Idempotency-Key.
func (s *Sink) Send(ctx context.Context, exec scheduler.Execution) error {
	body, err := json.Marshal(Payload{
		Job:         exec.Job,
		Cron:        exec.Cron,
		ExecutionID: exec.ID.String(),
		ScheduledAt: exec.ScheduledAt.UTC(),
		FiredAt:     exec.FiredAt.UTC(),
	})
	if err != nil {
		return shared.MarkKind(fmt.Errorf("encode payload: %w", err), shared.KindInternal)
	}

	header := http.Header{}
	header.Set("Idempotency-Key", exec.ID.String())
	if s.secret != nil {
		header.Set(SignatureHeader, Sign(s.secret, body))
	}

	resp, err := s.client.PostJSON(ctx, s.url, body, header)
	if err != nil {
		return fmt.Errorf("webhook for job %q: %w", exec.Job, err)
	}
	s.log.Debug("webhook delivered", "job", exec.Job, "execution_id", exec.ID, "status", resp.StatusCode)
	return nil
}

// Sign returns the body signature as "sha256=<hex>".
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
