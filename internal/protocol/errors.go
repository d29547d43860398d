package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Dialogue pipeline.
	ErrDecode          = "E_DECODE"
	ErrLLMUnavailable  = "E_LLM_UNAVAILABLE"
	ErrDialoguePending = "E_DIALOGUE_PENDING"

	// Action layer.
	ErrUnknownItem   = "E_UNKNOWN_ITEM"
	ErrNoStock       = "E_NO_STOCK"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrOutOfRange    = "E_OUT_OF_RANGE"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrDecode:          {},
	ErrLLMUnavailable:  {},
	ErrDialoguePending: {},
	ErrUnknownItem:     {},
	ErrNoStock:         {},
	ErrInvalidTarget:   {},
	ErrOutOfRange:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
