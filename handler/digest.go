package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"standup-bot/internal/usecase"
)

// DigestRunner is the aggregator surface consumed by the scheduled handler.
type DigestRunner interface {
	Run(ctx context.Context) (usecase.DigestReport, error)
}

// DigestHandler serves the scheduled digest invocation.
type DigestHandler struct {
	digest DigestRunner
}

// NewDigestHandler creates a DigestHandler.
func NewDigestHandler(digest DigestRunner) (*DigestHandler, error) {
	if digest == nil {
		return nil, errors.New("handler: digest runner must not be nil")
	}
	return &DigestHandler{digest: digest}, nil
}

// Handle runs the digest for an EventBridge scheduled event. A failed run
// returns the error so the invocation is marked failed; the next scheduled
// run does not compensate for it.
func (h *DigestHandler) Handle(ctx context.Context, _ events.CloudWatchEvent) error {
	report, err := h.digest.Run(ctx)
	if err != nil {
		slog.Error("digest run failed", "err", err)
		return err
	}
	slog.Info("digest posted", "day", report.DayLabel, "submissions", report.Count, "users", report.Users)
	return nil
}
