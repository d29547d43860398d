package world

import (
	"fmt"

	"veldora.quest/internal/protocol"
)

// Conversation is an actor's append-only message history. The first
// entry is always the system message carrying the persona and the reply
// contract; the history grows monotonically for the actor's lifetime.
type Conversation struct {
	messages []protocol.ChatMessage
}

func NewConversation(name, occupation, backstory string) *Conversation {
	return &Conversation{messages: []protocol.ChatMessage{{
		Role:    protocol.RoleSystem,
		Content: personaPrompt(name, occupation, backstory),
	}}}
}

func (c *Conversation) Append(m protocol.ChatMessage) {
	c.messages = append(c.messages, m)
}

// History returns a copy; snapshots cross into worker goroutines.
func (c *Conversation) History() []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int { return len(c.messages) }

const requestExample = `{
  "sender_id": "Bob",
  "receiver_id": "Hank",
  "message": "Deal! 50 Gold Coins for a Steel Sword sounds good to me.",
  "actions": [
    {
      "Give": {
        "item": "Gold Coin",
        "amount": 50
      }
    }
  ]
}
{
  "npc_inventory": [
    {
      "item": "Steel Sword",
      "amount": 5
    },
    {
      "item": "Gold Coin",
      "amount": 30
    }
  ]
}`

const replyExample = `{
  "sender_id": "Hank",
  "receiver_id": "Bob",
  "message": "It was a pleasure doing business with you!",
  "actions": [
    {
      "Give": {
        "item": "Steel Sword",
        "amount": 1
      }
    }
  ]
}`

// personaPrompt is the single system message an NPC is seeded with: who
// it is, plus the exact reply contract the codec understands.
func personaPrompt(name, occupation, backstory string) string {
	return fmt.Sprintf(`You are a NPC in a RPG game. Your name is %s and you are a %s. This is your backstory: %s.
The communication between you as a npc and the player is done using json objects. This is what an incoming request looks like:
%s
The first object is the message the player sends you. The second object is passed to you by the game and lists the items you currently hold. You can only give items that you have enough of; the game updates your inventory for you.
You respond with a message of your own and, when you hand something over, a Give action. For example:
%s
Do not send the second object back. Reply with exactly one json object and never put any text before or after it. Do not wrap it in a code fence. The first character you send must be { and the last must be }.`,
		name, occupation, backstory, requestExample, replyExample)
}
