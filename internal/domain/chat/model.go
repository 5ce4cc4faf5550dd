package chat

// Role identifies the speaker of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultSessionID is the correlation id used when none is configured.
const DefaultSessionID = "my-unique-chat-id"

// Config configures the chat widget.
type Config struct {
	// SessionID is sent as chat_id with every request so the external
	// service can group turns into one conversation.
	SessionID string
}

// Message is one immutable transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the payload sent to the external chat endpoint.
type Request struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id"`
}

// Reply is the decoded chat endpoint body. Fields other than Response are ignored
// by the widget; Error is kept for logging.
type Reply struct {
	Response string `json:"response,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// State is the widget state of one view.
type State struct {
	Transcript []Message `json:"transcript"`
	Input      string    `json:"input"`
	Loading    bool      `json:"loading"`
}

// SubmitRequest is the inbound payload of the chat form.
type SubmitRequest struct {
	Message string `json:"message"`
}
