// Package handler maps Lambda invocations onto the standup usecases.
//
// Responsibilities here, not in the usecases: recovering the exact raw body
// Slack signed (base64 decode), gating on the signature before any parsing,
// decoding the form encoding, routing by path with a field-presence
// fallback, and shaping responses the way Slack expects (user-visible
// errors ride a 200; anything else shows as dispatch_failed).
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"standup-bot/internal/integrations/slackapi"
	"standup-bot/internal/signature"
	"standup-bot/internal/usecase"
)

const (
	headerTimestamp     = "X-Slack-Request-Timestamp"
	headerSignature     = "X-Slack-Signature"
	headerCorrelationID = "X-Correlation-Id"
)

// Dispatcher is the standup usecase surface consumed by the handler.
type Dispatcher interface {
	HandleCommand(ctx context.Context, in usecase.CommandInput) (usecase.CommandResult, error)
	HandleInteraction(ctx context.Context, payloadJSON string) (usecase.InteractionResult, error)
}

// RequestVerifier authenticates an inbound request from its raw body and
// signature headers.
type RequestVerifier interface {
	Verify(rawBody, timestampHeader, signatureHeader string) error
}

// Handler serves the slash-command and interaction endpoints.
type Handler struct {
	verifier RequestVerifier
	standup  Dispatcher
}

// NewHandler creates a Handler.
func NewHandler(verifier RequestVerifier, standup Dispatcher) (*Handler, error) {
	if verifier == nil {
		return nil, errors.New("handler: verifier must not be nil")
	}
	if standup == nil {
		return nil, errors.New("handler: standup dispatcher must not be nil")
	}
	return &Handler{verifier: verifier, standup: standup}, nil
}

// ephemeralMessage is the in-channel response shown only to the invoking user.
type ephemeralMessage struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// viewResponse instructs Slack what to do with an open modal.
type viewResponse struct {
	ResponseAction string            `json:"response_action"`
	Errors         map[string]string `json:"errors,omitempty"`
	View           *slackapi.View    `json:"view,omitempty"`
}

// Handle is the Lambda entrypoint for the API Gateway proxy event.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := slog.With("correlation_id", correlationID)

	rawBody := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(rawBody)
		if err != nil {
			log.Warn("body decode failed", "err", err)
			return respond(http.StatusBadRequest, correlationID, "", "bad request"), nil
		}
		rawBody = string(decoded)
	}

	// The signature covers the exact raw body, so this must precede parsing.
	if err := h.verifier.Verify(rawBody, headerValue(event.Headers, headerTimestamp), headerValue(event.Headers, headerSignature)); err != nil {
		if errors.Is(err, signature.ErrBadSignature) {
			log.Warn("request rejected", "path", event.Path, "err", err)
			return respond(http.StatusUnauthorized, correlationID, "", "bad signature"), nil
		}
		log.Error("signature check unavailable", "err", err)
		return respond(http.StatusInternalServerError, correlationID, "", "internal error"), nil
	}

	form, err := url.ParseQuery(rawBody)
	if err != nil {
		log.Warn("form parse failed", "err", err)
		return respond(http.StatusBadRequest, correlationID, "", "bad request"), nil
	}

	switch {
	case strings.HasSuffix(event.Path, "/standup"), form.Has("command"):
		return h.handleCommand(ctx, log, correlationID, form), nil
	case strings.HasSuffix(event.Path, "/interactive"), form.Has("payload"):
		return h.handleInteraction(ctx, log, correlationID, form.Get("payload")), nil
	}
	return respond(http.StatusNotFound, correlationID, "", "not found"), nil
}

func (h *Handler) handleCommand(ctx context.Context, log *slog.Logger, correlationID string, form url.Values) events.APIGatewayProxyResponse {
	in := usecase.CommandInput{
		UserID:    form.Get("user_id"),
		UserName:  form.Get("user_name"),
		Text:      form.Get("text"),
		TriggerID: form.Get("trigger_id"),
	}

	result, err := h.standup.HandleCommand(ctx, in)
	if err != nil {
		if code(err) == usecase.ErrorInvalidInput {
			log.Warn("command rejected", "user_id", in.UserID, "err", err)
			return respondJSON(correlationID, ephemeralMessage{
				ResponseType: "ephemeral",
				Text:         "That update couldn't be saved. Check it and try again.",
			})
		}
		log.Error("command failed", "user_id", in.UserID, "err", err)
		return respond(http.StatusInternalServerError, correlationID, "", "internal error")
	}

	if result.Message == "" {
		return respond(http.StatusOK, correlationID, "", "")
	}
	return respondJSON(correlationID, ephemeralMessage{ResponseType: "ephemeral", Text: result.Message})
}

func (h *Handler) handleInteraction(ctx context.Context, log *slog.Logger, correlationID, payload string) events.APIGatewayProxyResponse {
	result, err := h.standup.HandleInteraction(ctx, payload)
	if err != nil {
		if code(err) == usecase.ErrorInvalidInput {
			log.Warn("interaction rejected", "err", err)
			return respond(http.StatusBadRequest, correlationID, "", "bad request")
		}
		log.Error("interaction failed", "err", err)
		return respond(http.StatusInternalServerError, correlationID, "", "internal error")
	}

	switch {
	case len(result.Errors) > 0:
		return respondJSON(correlationID, viewResponse{ResponseAction: "errors", Errors: result.Errors})
	case result.View != nil:
		return respondJSON(correlationID, viewResponse{ResponseAction: "update", View: result.View})
	}
	return respond(http.StatusOK, correlationID, "", "")
}

func code(err error) usecase.ErrorCode {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		return ucErr.Code
	}
	return usecase.ErrorInternal
}

// headerValue normalizes header access; API Gateway may deliver headers in
// either case.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	return headers[strings.ToLower(name)]
}

func respond(status int, correlationID, contentType, body string) events.APIGatewayProxyResponse {
	headers := map[string]string{headerCorrelationID: correlationID}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: body}
}

func respondJSON(correlationID string, payload any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("response marshal failed", "err", err)
		return respond(http.StatusInternalServerError, correlationID, "", "internal error")
	}
	return respond(http.StatusOK, correlationID, "application/json", string(body))
}
