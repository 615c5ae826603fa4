package slackapi

// Minimal Block Kit shapes — only what the modal and the digest emit.

// TextObject is a Block Kit text composition object.
type TextObject struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// PlainText builds a plain_text object.
func PlainText(text string) *TextObject {
	return &TextObject{Type: "plain_text", Text: text}
}

// Markdown builds an mrkdwn object.
func Markdown(text string) *TextObject {
	return &TextObject{Type: "mrkdwn", Text: text}
}

// InputElement is the element of an input block.
type InputElement struct {
	Type        string      `json:"type"`
	ActionID    string      `json:"action_id"`
	Multiline   bool        `json:"multiline,omitempty"`
	Placeholder *TextObject `json:"placeholder,omitempty"`
}

// Block is a layout block. Fields are populated per block type.
type Block struct {
	Type    string        `json:"type"`
	BlockID string        `json:"block_id,omitempty"`
	Text    *TextObject   `json:"text,omitempty"`
	Element *InputElement `json:"element,omitempty"`
	Label   *TextObject   `json:"label,omitempty"`
}

// SectionBlock builds a section block with mrkdwn text.
func SectionBlock(text string) Block {
	return Block{Type: "section", Text: Markdown(text)}
}

// DividerBlock builds a divider.
func DividerBlock() Block {
	return Block{Type: "divider"}
}

// View is a modal view definition for views.open.
type View struct {
	Type       string      `json:"type"`
	CallbackID string      `json:"callback_id,omitempty"`
	Title      *TextObject `json:"title"`
	Submit     *TextObject `json:"submit,omitempty"`
	Close      *TextObject `json:"close,omitempty"`
	Blocks     []Block     `json:"blocks"`
}
