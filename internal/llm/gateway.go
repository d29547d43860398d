package llm

import (
	"context"
	"errors"

	"veldora.quest/internal/protocol"
)

// ErrUnavailable covers every way the backend can fail: refused
// connections, timeouts, malformed bodies. The gateway never retries;
// re-submitting the pair is the caller's retry path.
var ErrUnavailable = errors.New("model backend unavailable")

// Gateway is a stateless request/response exchange with the language
// model: post a full history, get the assistant's next turn.
type Gateway interface {
	Exchange(ctx context.Context, history []protocol.ChatMessage) (protocol.ChatMessage, error)
}
