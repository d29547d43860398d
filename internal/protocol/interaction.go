package protocol

// Chat roles, matching the backend's chat API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Interaction is the structured unit exchanged with the model: dialogue
// text plus zero or more game actions.
type Interaction struct {
	SenderID   string   `json:"sender_id"`
	ReceiverID string   `json:"receiver_id"`
	Message    string   `json:"message"`
	Actions    []Action `json:"actions"`
}

// Action is a tagged variant. Exactly one field is set. The key casing
// ("Give") is part of the wire format and must not change.
type Action struct {
	Give *GiveAction `json:"Give,omitempty"`
}

type GiveAction struct {
	Item   string `json:"item"`
	Amount int    `json:"amount"`
}

// Equal compares two interactions field by field, actions in order.
func (it Interaction) Equal(other Interaction) bool {
	if it.SenderID != other.SenderID || it.ReceiverID != other.ReceiverID || it.Message != other.Message {
		return false
	}
	if len(it.Actions) != len(other.Actions) {
		return false
	}
	for i := range it.Actions {
		a, b := it.Actions[i].Give, other.Actions[i].Give
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}
