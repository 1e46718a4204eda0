package models

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	SenderUser = "User"
	SenderAI   = "AI"
)

// ChatMessage represents a single role-tagged turn sent upstream.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []ChatMessage `json:"conversationHistory,omitempty"`
}

// ChatResponse is the reply from the AI chat.
// HTML is the sanitized markdown rendering of Reply.
type ChatResponse struct {
	Reply string `json:"reply"`
	HTML  string `json:"html,omitempty"`
}

// ErrorResponse is the body of every non-2xx relay response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Message is one transcript entry as the chat UI displays it.
type Message struct {
	Sender    string `json:"sender"` // "User" or "AI"
	Text      string `json:"text"`
	HTML      string `json:"html,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Role maps a transcript sender onto the upstream role.
func (m Message) Role() string {
	if m.Sender == SenderAI {
		return RoleAssistant
	}
	return RoleUser
}
