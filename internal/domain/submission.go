package domain

// Source records which inbound path produced a submission.
type Source string

const (
	SourceSlashCommand Source = "slash_command"
	SourceModal        Source = "modal"
)

// Submission is one immutable standup update. Keyed by (UserID, TS); never
// updated or deleted by this service.
type Submission struct {
	UserID   string `dynamodbav:"user_id"`
	TS       string `dynamodbav:"ts"`
	Text     string `dynamodbav:"message"`
	Source   Source `dynamodbav:"source"`
	UserName string `dynamodbav:"user_name,omitempty"`
}
