package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"standup-bot/internal/domain"
	"standup-bot/internal/integrations/slackapi"
)

const defaultMaxTextLen = 3000

// tsLayout is the sort-key timestamp format. Fixed-width nanoseconds keep
// lexicographic order equal to chronological order, which the range scan
// depends on.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ViewOpener is the Slack surface needed by the command path.
type ViewOpener interface {
	OpenView(ctx context.Context, triggerID string, view slackapi.View) error
}

// SubmissionWriter is the store surface needed by the write paths.
type SubmissionWriter interface {
	PutSubmission(ctx context.Context, sub domain.Submission) error
	LatestForUser(ctx context.Context, userID string, n int) ([]domain.Submission, error)
}

// Standup dispatches slash-command invocations and modal submissions.
//
// Duplicate-delivery policy: append-always. Every write gets a
// nanosecond-resolution timestamp plus a random suffix, so a platform
// retry of the same invocation lands as a second, distinct record.
type Standup struct {
	store      SubmissionWriter
	slack      ViewOpener
	maxTextLen int

	now       func() time.Time
	newSuffix func() string
}

// CommandInput is a verified slash-command invocation.
type CommandInput struct {
	UserID    string
	UserName  string
	Text      string
	TriggerID string
}

// CommandResult carries the ephemeral message shown to the invoking user.
// An empty Message means a bare ack (the modal opens asynchronously).
type CommandResult struct {
	Message string
}

// InteractionResult is the response to a modal interaction. Exactly one of
// the fields is set; both empty means a bare ack.
type InteractionResult struct {
	// Errors maps block ids to validation messages. Slack keeps the modal
	// open and renders them under the inputs.
	Errors map[string]string
	// View replaces the modal with a success screen.
	View *slackapi.View
}

// NewStandup creates the dispatcher. maxTextLen <= 0 selects the default.
func NewStandup(store SubmissionWriter, slack ViewOpener, maxTextLen int) (*Standup, error) {
	if store == nil {
		return nil, errors.New("usecase: submission store must not be nil")
	}
	if slack == nil {
		return nil, errors.New("usecase: slack client must not be nil")
	}
	if maxTextLen <= 0 {
		maxTextLen = defaultMaxTextLen
	}
	return &Standup{
		store:      store,
		slack:      slack,
		maxTextLen: maxTextLen,
		now:        time.Now,
		newSuffix:  func() string { return uuid.NewString()[:8] },
	}, nil
}

// HandleCommand records inline text immediately, or opens the standup modal
// when the invocation carried none.
func (s *Standup) HandleCommand(ctx context.Context, in CommandInput) (CommandResult, error) {
	text := strings.TrimSpace(in.Text)

	if text == "" {
		if err := s.slack.OpenView(ctx, in.TriggerID, standupModalView()); err != nil {
			// Trigger ids are single-use and expire within seconds, so a
			// retry cannot succeed. Tell the user instead.
			slog.Warn("views.open failed", "user_id", in.UserID, "err", err)
			return CommandResult{
				Message: "Couldn't open the form just now. Try again, or type `/standup your update`.",
			}, nil
		}
		return CommandResult{}, nil
	}

	if in.UserID == "" {
		return CommandResult{}, newError(ErrorInvalidInput, "missing_user_id", nil)
	}
	if len(text) > s.maxTextLen {
		return CommandResult{}, newError(ErrorInvalidInput, "text_too_long", nil)
	}

	sub := s.newSubmission(in.UserID, in.UserName, text, domain.SourceSlashCommand)
	if err := s.store.PutSubmission(ctx, sub); err != nil {
		return CommandResult{}, newError(ErrorUpstream, "store_write_error", err)
	}

	return CommandResult{Message: savedConfirmation(sub, s.previousEntry(ctx, sub))}, nil
}

// interactionPayload is the subset of Slack's interaction callback we read.
type interactionPayload struct {
	Type string `json:"type"`
	User struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
	View struct {
		CallbackID string `json:"callback_id"`
		State      struct {
			Values map[string]map[string]struct {
				Value string `json:"value"`
			} `json:"values"`
		} `json:"state"`
	} `json:"view"`
}

// HandleInteraction processes a modal interaction callback. Only
// view_submission payloads for the standup modal produce a write; anything
// else is acked untouched.
func (s *Standup) HandleInteraction(ctx context.Context, payloadJSON string) (InteractionResult, error) {
	if strings.TrimSpace(payloadJSON) == "" {
		return InteractionResult{}, nil
	}

	var payload interactionPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return InteractionResult{}, newError(ErrorInvalidInput, "malformed_payload", err)
	}
	if payload.Type != "view_submission" || payload.View.CallbackID != standupCallbackID {
		return InteractionResult{}, nil
	}

	text := strings.TrimSpace(payload.View.State.Values[standupInputBlockID][standupTextActionID].Value)
	if text == "" {
		return InteractionResult{
			Errors: map[string]string{standupInputBlockID: "Please enter your update."},
		}, nil
	}
	if len(text) > s.maxTextLen {
		return InteractionResult{
			Errors: map[string]string{standupInputBlockID: fmt.Sprintf("Keep your update under %d characters.", s.maxTextLen)},
		}, nil
	}
	if payload.User.ID == "" {
		return InteractionResult{}, newError(ErrorInvalidInput, "missing_user_id", nil)
	}

	sub := s.newSubmission(payload.User.ID, payload.User.Name, text, domain.SourceModal)
	if err := s.store.PutSubmission(ctx, sub); err != nil {
		return InteractionResult{}, newError(ErrorUpstream, "store_write_error", err)
	}

	return InteractionResult{View: submittedView(sub, s.previousEntry(ctx, sub))}, nil
}

func (s *Standup) newSubmission(userID, userName, text string, source domain.Source) domain.Submission {
	return domain.Submission{
		UserID:   userID,
		TS:       s.now().UTC().Format(tsLayout) + "#" + s.newSuffix(),
		Text:     text,
		Source:   source,
		UserName: userName,
	}
}

// previousEntry returns the submission preceding sub for the same user, or
// nil. A read failure only degrades the confirmation, never the write.
func (s *Standup) previousEntry(ctx context.Context, sub domain.Submission) *domain.Submission {
	latest, err := s.store.LatestForUser(ctx, sub.UserID, 2)
	if err != nil {
		slog.Warn("previous entry lookup failed", "user_id", sub.UserID, "err", err)
		return nil
	}
	for i := range latest {
		if latest[i].TS != sub.TS {
			return &latest[i]
		}
	}
	return nil
}
