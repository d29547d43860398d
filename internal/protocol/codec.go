package protocol

import (
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed interaction.schema.json
var interactionSchemaJSON string

var interactionSchema = jsonschema.MustCompileString("interaction.schema.json", interactionSchemaJSON)

// EncodeInteraction serializes an outgoing interaction followed by the
// responder's inventory snapshot document. The two JSON documents are
// concatenated back to back on the same string; this wire shape predates
// the codec and is what the model is primed to expect.
func EncodeInteraction(it Interaction, inventoryDoc string) (string, error) {
	if it.Actions == nil {
		it.Actions = []Action{}
	}
	b, err := json.Marshal(it)
	if err != nil {
		return "", err
	}
	return string(b) + inventoryDoc, nil
}

// FallbackInteraction is what decoding yields when a model reply cannot
// be understood. Decoding never fails the caller.
func FallbackInteraction(diagnostic string) Interaction {
	return Interaction{
		SenderID:   "error",
		ReceiverID: "error",
		Message:    diagnostic,
		Actions:    []Action{},
	}
}

// IsFallback reports whether it carries the decode-failure marker.
func IsFallback(it Interaction) bool {
	return it.SenderID == "error" && it.ReceiverID == "error"
}

// DecodeReply interprets a raw model reply. The structured JSON dialect
// is tried first, then the legacy bracket dialect; anything else yields
// the fallback interaction.
func DecodeReply(raw string) Interaction {
	if it, ok := decodeJSONReply(raw); ok {
		return it
	}
	if cmds, err := DecodeBracket(raw); err == nil {
		return interactionFromCommands(cmds)
	}
	return FallbackInteraction("model reply is neither an interaction object nor a legacy command string")
}

func decodeJSONReply(raw string) (Interaction, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return Interaction{}, false
	}
	// Decode only the leading JSON document; models sometimes echo the
	// inventory document after the interaction object.
	dec := json.NewDecoder(strings.NewReader(trimmed))
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return Interaction{}, false
	}
	if err := interactionSchema.Validate(generic); err != nil {
		return Interaction{}, false
	}
	var it Interaction
	dec = json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&it); err != nil {
		return Interaction{}, false
	}
	if it.Actions == nil {
		it.Actions = []Action{}
	}
	return it, true
}

func interactionFromCommands(cmds []Command) Interaction {
	if len(cmds) == 0 {
		return FallbackInteraction("legacy reply contained no commands")
	}
	it := Interaction{
		SenderID:   cmds[0].Sender,
		ReceiverID: cmds[0].Receiver,
		Actions:    []Action{},
	}
	var texts []string
	for _, c := range cmds {
		switch c.Kind {
		case KindTransfer:
			it.Actions = append(it.Actions, Action{Give: &GiveAction{Item: c.Item, Amount: c.Amount}})
		case KindSay:
			texts = append(texts, c.Text)
		}
	}
	it.Message = strings.Join(texts, " ")
	return it
}
