package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeInteraction_TwoDocumentShape(t *testing.T) {
	it := Interaction{
		SenderID:   "Bob",
		ReceiverID: "Hank",
		Message:    "Deal! 50 Gold Coins for a Steel Sword.",
		Actions:    []Action{{Give: &GiveAction{Item: "Gold Coin", Amount: 50}}},
	}
	inv := `{"npc_inventory":[{"item":"Steel Sword","amount":5}]}`

	wire, err := EncodeInteraction(it, inv)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasSuffix(wire, inv) {
		t.Fatalf("inventory doc not appended: %q", wire)
	}
	lead := strings.TrimSuffix(wire, inv)
	if !json.Valid([]byte(lead)) {
		t.Fatalf("leading document is not valid JSON: %q", lead)
	}
	if strings.Contains(lead, "npc_inventory") {
		t.Fatalf("inventory nested into interaction object: %q", lead)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	it := Interaction{
		SenderID:   "Hank",
		ReceiverID: "Bob",
		Message:    "It was a pleasure doing business with you!",
		Actions: []Action{
			{Give: &GiveAction{Item: "Steel Sword", Amount: 1}},
			{Give: &GiveAction{Item: "Gold Coin", Amount: 3}},
		},
	}
	wire, err := EncodeInteraction(it, `{"npc_inventory":[]}`)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got := DecodeReply(wire)
	if !got.Equal(it) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, it)
	}
}

func TestDecodeReply_EmptyActions(t *testing.T) {
	got := DecodeReply(`{"sender_id":"Hank","receiver_id":"Bob","message":"Hello!"}`)
	if got.SenderID != "Hank" || got.ReceiverID != "Bob" {
		t.Fatalf("bad parties: %+v", got)
	}
	if got.Actions == nil || len(got.Actions) != 0 {
		t.Fatalf("expected empty (non-nil) actions, got %#v", got.Actions)
	}
}

func TestDecodeReply_MalformedFallsBack(t *testing.T) {
	for _, raw := range []string{
		"",
		"certainly! here is the trade you asked for",
		`{"sender_id":"Hank","receiver_id":`,
		"```json\n{}\n```",
	} {
		got := DecodeReply(raw)
		if !IsFallback(got) {
			t.Fatalf("raw %q: expected fallback, got %+v", raw, got)
		}
		if got.Message == "" {
			t.Fatalf("raw %q: fallback carries no diagnostic", raw)
		}
		if len(got.Actions) != 0 {
			t.Fatalf("raw %q: fallback must carry no actions", raw)
		}
	}
}

func TestDecodeReply_SchemaRejectsWrongShapes(t *testing.T) {
	for _, raw := range []string{
		`{"sender_id":1,"receiver_id":"Bob","message":"hi"}`,
		`{"sender_id":"Hank","message":"hi"}`,
		`{"sender_id":"Hank","receiver_id":"Bob","message":"hi","actions":[{"Give":{"item":"Gold Coin"}}]}`,
		`{"sender_id":"Hank","receiver_id":"Bob","message":"hi","actions":[{"Give":{"item":"Gold Coin","amount":"5"}}]}`,
	} {
		got := DecodeReply(raw)
		if !IsFallback(got) {
			t.Fatalf("raw %q: expected fallback, got %+v", raw, got)
		}
	}
}

func TestDecodeReply_IgnoresTrailingInventoryDoc(t *testing.T) {
	raw := `{"sender_id":"Hank","receiver_id":"Bob","message":"Take it.","actions":[{"Give":{"item":"Bread","amount":1}}]}` +
		`{"npc_inventory":[{"item":"Bread","amount":9}]}`
	got := DecodeReply(raw)
	if IsFallback(got) {
		t.Fatalf("trailing doc broke decode: %+v", got)
	}
	if len(got.Actions) != 1 || got.Actions[0].Give == nil || got.Actions[0].Give.Item != "Bread" {
		t.Fatalf("bad actions: %+v", got.Actions)
	}
}
