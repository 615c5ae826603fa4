package usecase

import (
	"fmt"

	"standup-bot/internal/domain"
	"standup-bot/internal/integrations/slackapi"
)

// Block and action ids round-tripped through the modal payload. The
// interaction handler digs the submitted value out of
// view.state.values[standupInputBlockID][standupTextActionID].
const (
	standupCallbackID   = "standup_modal"
	standupInputBlockID = "standup_input"
	standupTextActionID = "standup_text"
)

// standupModalView is the form opened when /standup is invoked without text:
// a single multiline input.
func standupModalView() slackapi.View {
	return slackapi.View{
		Type:       "modal",
		CallbackID: standupCallbackID,
		Title:      slackapi.PlainText("Daily Standup"),
		Submit:     slackapi.PlainText("Submit"),
		Close:      slackapi.PlainText("Cancel"),
		Blocks: []slackapi.Block{
			{
				Type:    "input",
				BlockID: standupInputBlockID,
				Element: &slackapi.InputElement{
					Type:        "plain_text_input",
					ActionID:    standupTextActionID,
					Multiline:   true,
					Placeholder: slackapi.PlainText("What did you work on today?"),
				},
				Label: slackapi.PlainText("Your standup update"),
			},
		},
	}
}

// savedConfirmation renders the ephemeral ack for an inline submission,
// quoting the saved text and the previous entry when one exists.
func savedConfirmation(sub domain.Submission, prev *domain.Submission) string {
	msg := fmt.Sprintf(":white_check_mark: Saved your update at *%s* (UTC)\n> %s", sub.TS, sub.Text)
	if prev != nil {
		msg += fmt.Sprintf("\n\n*Previous:* _%s_\n> %s", prev.TS, prev.Text)
	}
	return msg
}

// submittedView replaces the modal with a success screen after a valid
// submission.
func submittedView(sub domain.Submission, prev *domain.Submission) *slackapi.View {
	blocks := []slackapi.Block{
		slackapi.SectionBlock(fmt.Sprintf(":white_check_mark: Saved at *%s* (UTC)\n\n> %s", sub.TS, sub.Text)),
	}
	if prev != nil {
		blocks = append(blocks, slackapi.SectionBlock(
			fmt.Sprintf("*Previous:* _%s_\n> %s", prev.TS, prev.Text),
		))
	}
	return &slackapi.View{
		Type:   "modal",
		Title:  slackapi.PlainText("Standup Submitted!"),
		Close:  slackapi.PlainText("Close"),
		Blocks: blocks,
	}
}
