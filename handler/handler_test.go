package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"standup-bot/internal/integrations/slackapi"
	"standup-bot/internal/signature"
	"standup-bot/internal/usecase"
)

const testSecret = "test-signing-secret"

var testNow = time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

type stubDispatcher struct {
	commandResult     usecase.CommandResult
	commandErr        error
	interactionResult usecase.InteractionResult
	interactionErr    error

	commandCalls     int
	interactionCalls int
	lastCommand      usecase.CommandInput
	lastPayload      string
}

func (s *stubDispatcher) HandleCommand(_ context.Context, in usecase.CommandInput) (usecase.CommandResult, error) {
	s.commandCalls++
	s.lastCommand = in
	return s.commandResult, s.commandErr
}

func (s *stubDispatcher) HandleInteraction(_ context.Context, payloadJSON string) (usecase.InteractionResult, error) {
	s.interactionCalls++
	s.lastPayload = payloadJSON
	return s.interactionResult, s.interactionErr
}

func newTestHandler(t *testing.T, dispatcher *stubDispatcher) *Handler {
	t.Helper()
	v, err := signature.New(signature.StaticSecret(testSecret), signature.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	h, err := NewHandler(v, dispatcher)
	require.NoError(t, err)
	return h
}

func signedEvent(path, body string) events.APIGatewayProxyRequest {
	ts := fmt.Sprintf("%d", testNow.Unix())
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       path,
		Headers: map[string]string{
			"Content-Type":              "application/x-www-form-urlencoded",
			"X-Slack-Request-Timestamp": ts,
			"X-Slack-Signature":         signature.Compute(testSecret, ts, body),
		},
		Body: body,
	}
}

func commandBody(userID, text, triggerID string) string {
	form := url.Values{}
	form.Set("command", "/standup")
	form.Set("user_id", userID)
	form.Set("user_name", "ada")
	form.Set("text", text)
	form.Set("trigger_id", triggerID)
	return form.Encode()
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	v, err := signature.New(signature.StaticSecret(testSecret))
	require.NoError(t, err)

	_, err = NewHandler(nil, &stubDispatcher{})
	require.Error(t, err)
	_, err = NewHandler(v, nil)
	require.Error(t, err)
}

func TestHandle_BadSignature_NoSideEffects(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := newTestHandler(t, dispatcher)

	event := signedEvent("/standup", commandBody("U1", "hello", "trig"))
	event.Headers["X-Slack-Signature"] = "v0=0000000000000000000000000000000000000000000000000000000000000000"

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, dispatcher.commandCalls)
	require.Zero(t, dispatcher.interactionCalls)
}

func TestHandle_StaleTimestamp_Rejected(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := newTestHandler(t, dispatcher)

	body := commandBody("U1", "hello", "trig")
	stale := fmt.Sprintf("%d", testNow.Add(-10*time.Minute).Unix())
	event := events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/standup",
		Headers: map[string]string{
			"X-Slack-Request-Timestamp": stale,
			"X-Slack-Signature":         signature.Compute(testSecret, stale, body),
		},
		Body: body,
	}

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, dispatcher.commandCalls)
}

func TestHandle_Command_EphemeralAck(t *testing.T) {
	dispatcher := &stubDispatcher{commandResult: usecase.CommandResult{Message: "Saved your update"}}
	h := newTestHandler(t, dispatcher)

	resp, err := h.Handle(context.Background(), signedEvent("/standup", commandBody("U1", "hello there", "trig")))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
	require.Equal(t, "application/json", resp.Headers["Content-Type"])

	require.Equal(t, usecase.CommandInput{
		UserID:    "U1",
		UserName:  "ada",
		Text:      "hello there",
		TriggerID: "trig",
	}, dispatcher.lastCommand)

	out := parseBody[ephemeralMessage](t, resp.Body)
	require.Equal(t, "ephemeral", out.ResponseType)
	require.Equal(t, "Saved your update", out.Text)
}

func TestHandle_Command_EmptyAck(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := newTestHandler(t, dispatcher)

	resp, err := h.Handle(context.Background(), signedEvent("/standup", commandBody("U1", "", "trig")))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Body)
}

func TestHandle_Command_ErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		status    int
		ephemeral bool
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "text_too_long"}, status: http.StatusOK, ephemeral: true},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "store_write_error"}, status: http.StatusInternalServerError},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dispatcher := &stubDispatcher{commandErr: tc.err}
			h := newTestHandler(t, dispatcher)

			resp, err := h.Handle(context.Background(), signedEvent("/standup", commandBody("U1", "x", "trig")))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			if tc.ephemeral {
				out := parseBody[ephemeralMessage](t, resp.Body)
				require.Equal(t, "ephemeral", out.ResponseType)
			}
		})
	}
}

func TestHandle_Interaction_PayloadForwarded(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := newTestHandler(t, dispatcher)

	payload := `{"type":"view_submission"}`
	form := url.Values{}
	form.Set("payload", payload)

	resp, err := h.Handle(context.Background(), signedEvent("/interactive", form.Encode()))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Body, "plain ack for non-submission interactions")
	require.Equal(t, payload, dispatcher.lastPayload)
}

func TestHandle_Interaction_ValidationErrorsKeepModalOpen(t *testing.T) {
	dispatcher := &stubDispatcher{interactionResult: usecase.InteractionResult{
		Errors: map[string]string{"standup_input": "Please enter your update."},
	}}
	h := newTestHandler(t, dispatcher)

	form := url.Values{}
	form.Set("payload", `{"type":"view_submission"}`)
	resp, err := h.Handle(context.Background(), signedEvent("/interactive", form.Encode()))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[viewResponse](t, resp.Body)
	require.Equal(t, "errors", out.ResponseAction)
	require.Contains(t, out.Errors, "standup_input")
}

func TestHandle_Interaction_UpdateView(t *testing.T) {
	dispatcher := &stubDispatcher{interactionResult: usecase.InteractionResult{
		View: &slackapi.View{Type: "modal", Title: slackapi.PlainText("Standup Submitted!")},
	}}
	h := newTestHandler(t, dispatcher)

	form := url.Values{}
	form.Set("payload", `{"type":"view_submission"}`)
	resp, err := h.Handle(context.Background(), signedEvent("/interactive", form.Encode()))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[viewResponse](t, resp.Body)
	require.Equal(t, "update", out.ResponseAction)
	require.NotNil(t, out.View)
	require.Equal(t, "modal", out.View.Type)
}

func TestHandle_Interaction_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "malformed payload", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "malformed_payload"}, status: http.StatusBadRequest},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "store_write_error"}, status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dispatcher := &stubDispatcher{interactionErr: tc.err}
			h := newTestHandler(t, dispatcher)

			form := url.Values{}
			form.Set("payload", `{}`)
			resp, err := h.Handle(context.Background(), signedEvent("/interactive", form.Encode()))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestHandle_FallbackRoutingByField(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := newTestHandler(t, dispatcher)

	// Root-mapped deployments route by field presence, as the paths carry
	// no suffix.
	resp, err := h.Handle(context.Background(), signedEvent("/", commandBody("U1", "x", "trig")))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, dispatcher.commandCalls)

	form := url.Values{}
	form.Set("payload", `{}`)
	_, err = h.Handle(context.Background(), signedEvent("/", form.Encode()))
	require.NoError(t, err)
	require.Equal(t, 1, dispatcher.interactionCalls)
}

func TestHandle_UnknownRequest_NotFound(t *testing.T) {
	h := newTestHandler(t, &stubDispatcher{})

	resp, err := h.Handle(context.Background(), signedEvent("/", "foo=bar"))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandle_Base64Body_VerifiedAgainstDecodedBytes(t *testing.T) {
	dispatcher := &stubDispatcher{commandResult: usecase.CommandResult{Message: "ok"}}
	h := newTestHandler(t, dispatcher)

	body := commandBody("U1", "hello", "trig")
	event := signedEvent("/standup", body)
	event.Body = base64.StdEncoding.EncodeToString([]byte(body))
	event.IsBase64Encoded = true

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hello", dispatcher.lastCommand.Text)
}

func TestHandle_LowercaseHeaders(t *testing.T) {
	dispatcher := &stubDispatcher{commandResult: usecase.CommandResult{Message: "ok"}}
	h := newTestHandler(t, dispatcher)

	event := signedEvent("/standup", commandBody("U1", "hello", "trig"))
	lower := make(map[string]string, len(event.Headers))
	for k, v := range event.Headers {
		lower[strings.ToLower(k)] = v
	}
	event.Headers = lower

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandle_UsesProvidedCorrelationID(t *testing.T) {
	dispatcher := &stubDispatcher{commandResult: usecase.CommandResult{Message: "ok"}}
	h := newTestHandler(t, dispatcher)

	event := signedEvent("/standup", commandBody("U1", "hello", "trig"))
	event.Headers["x-correlation-id"] = "corr-123"

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
