package world

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"veldora.quest/internal/llm"
	"veldora.quest/internal/protocol"
)

func sayEnv(playerID, to, text string) SayEnvelope {
	return SayEnvelope{PlayerID: playerID, Say: protocol.SayMsg{
		Type:            protocol.TypeSay,
		ProtocolVersion: protocol.Version,
		To:              to,
		Text:            text,
	}}
}

func drainEvents(t *testing.T, out chan []byte) []protocol.Event {
	t.Helper()
	var evs []protocol.Event
	for {
		select {
		case b := <-out:
			var msg protocol.EventMsg
			if err := json.Unmarshal(b, &msg); err != nil {
				t.Fatalf("bad event frame: %v", err)
			}
			evs = append(evs, msg.Events...)
		default:
			return evs
		}
	}
}

// stepUntil ticks the world until an event matching the predicate shows
// up on the client channel, returning everything seen on the way.
func stepUntil(t *testing.T, w *World, out chan []byte, match func(protocol.Event) bool) []protocol.Event {
	t.Helper()
	var seen []protocol.Event
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w.step(nil, nil, nil)
		seen = append(seen, drainEvents(t, out)...)
		for _, ev := range seen {
			if match(ev) {
				return seen
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no matching event within deadline; saw %+v", seen)
	return nil
}

func chatFrom(name string) func(protocol.Event) bool {
	return func(ev protocol.Event) bool { return ev["type"] == "CHAT" && ev["from"] == name }
}

// waitForCalls blocks until the worker goroutine has reached the
// gateway; Submit only spawns the worker, it does not run it.
func waitForCalls(t *testing.T, gw *fakeGateway, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if gw.callCount() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("gateway calls = %d, want %d", gw.callCount(), n)
}

func TestWorld_JoinWelcome(t *testing.T) {
	w := newTestWorld(t, &fakeGateway{})
	out := make(chan []byte, 64)
	resp := w.joinPlayer("Bob", out)

	if resp.Welcome.Type != protocol.TypeWelcome || resp.Welcome.PlayerID != "P1" {
		t.Fatalf("welcome: %+v", resp.Welcome)
	}
	if resp.Welcome.ItemsDigest != "test" {
		t.Fatalf("digest: %q", resp.Welcome.ItemsDigest)
	}
	if len(resp.Welcome.Npcs) != 1 || resp.Welcome.Npcs[0].Name != "Hank" {
		t.Fatalf("npcs: %+v", resp.Welcome.Npcs)
	}
	if resp.Catalog.Name != "items" {
		t.Fatalf("catalog: %+v", resp.Catalog)
	}
}

func TestWorld_DialogueRoundTrip(t *testing.T) {
	gw := &fakeGateway{reply: `{"sender_id":"Hank","receiver_id":"Bob","message":"A fine blade for a fine price.","actions":[{"Give":{"item":"Steel Sword","amount":1}}]}`}
	w := newTestWorld(t, gw)
	out := make(chan []byte, 64)
	w.joinPlayer("Bob", out)
	hank := w.byName["Hank"]
	bob := w.byName["Bob"]

	w.step(nil, nil, []SayEnvelope{sayEnv("P1", "Hank", "I would like to buy a sword.")})

	first := drainEvents(t, out)
	sawEcho, sawInputOff := false, false
	for _, ev := range first {
		if ev["type"] == "CHAT" && ev["from"] == "Bob" {
			sawEcho = true
		}
		if ev["type"] == "INPUT" && ev["enabled"] == false {
			sawInputOff = true
		}
	}
	if !sawEcho || !sawInputOff {
		t.Fatalf("submission events missing: %+v", first)
	}

	seen := stepUntil(t, w, out, chatFrom("Hank"))

	if got := hank.Inventory.Count("Steel Sword"); got != 4 {
		t.Fatalf("hank stock = %d", got)
	}
	if got := bob.Inventory.Count("Steel Sword"); got != 1 {
		t.Fatalf("bob stock = %d", got)
	}
	// system + user + assistant
	if got := hank.Convo.Len(); got != 3 {
		t.Fatalf("conversation length = %d", got)
	}
	h := hank.Convo.History()
	if h[1].Role != protocol.RoleUser || h[1].Content != "I would like to buy a sword." {
		t.Fatalf("user turn: %+v", h[1])
	}
	if h[2].Role != protocol.RoleAssistant || h[2].Content != "A fine blade for a fine price." {
		t.Fatalf("assistant turn: %+v", h[2])
	}
	if w.requests.Len() != 0 {
		t.Fatalf("registry not empty after completion")
	}
	sawInputOn := false
	for _, ev := range seen {
		if ev["type"] == "INPUT" && ev["enabled"] == true {
			sawInputOn = true
		}
	}
	if !sawInputOn {
		t.Fatalf("input never re-enabled: %+v", seen)
	}
}

func TestWorld_SecondSubmissionSamePairRejected(t *testing.T) {
	gw := &fakeGateway{reply: `{"sender_id":"Hank","receiver_id":"Bob","message":"hm"}`, gate: make(chan struct{})}
	w := newTestWorld(t, gw)
	out := make(chan []byte, 64)
	w.joinPlayer("Bob", out)

	w.step(nil, nil, []SayEnvelope{sayEnv("P1", "Hank", "first")})
	if w.requests.Len() != 1 {
		t.Fatalf("expected 1 pending, got %d", w.requests.Len())
	}
	waitForCalls(t, gw, 1)
	drainEvents(t, out)

	w.step(nil, nil, []SayEnvelope{sayEnv("P1", "Hank", "second")})
	if w.requests.Len() != 1 {
		t.Fatalf("duplicate submission created an entry")
	}
	rejected := false
	for _, ev := range drainEvents(t, out) {
		if ev["type"] == "ACTION_RESULT" && ev["code"] == protocol.ErrDialoguePending {
			rejected = true
		}
	}
	if !rejected {
		t.Fatalf("no rejection surfaced")
	}
	if got := gw.callCount(); got != 1 {
		t.Fatalf("gateway called %d times", got)
	}

	close(gw.gate)
	stepUntil(t, w, out, chatFrom("Hank"))
	if w.requests.Len() != 0 {
		t.Fatalf("key not cleared")
	}
}

func TestWorld_GatewayFailureStillDisplays(t *testing.T) {
	gw := &fakeGateway{err: llm.ErrUnavailable}
	w := newTestWorld(t, gw)
	out := make(chan []byte, 64)
	w.joinPlayer("Bob", out)
	hank := w.byName["Hank"]

	w.step(nil, nil, []SayEnvelope{sayEnv("P1", "Hank", "hello?")})
	seen := stepUntil(t, w, out, chatFrom("Hank"))

	sawCode := false
	for _, ev := range seen {
		if ev["type"] == "ACTION_RESULT" && ev["code"] == protocol.ErrLLMUnavailable {
			sawCode = true
		}
		if ev["type"] == "CHAT" && ev["from"] == "Hank" {
			if text, _ := ev["text"].(string); !strings.Contains(text, "something went wrong") {
				t.Fatalf("chat text: %v", ev["text"])
			}
		}
	}
	if !sawCode {
		t.Fatalf("failure code missing: %+v", seen)
	}
	// The failed exchange must not pollute the conversation.
	if got := hank.Convo.Len(); got != 2 { // system + user
		t.Fatalf("conversation length = %d", got)
	}
}

func TestWorld_SayValidation(t *testing.T) {
	w := newTestWorld(t, &fakeGateway{})
	out := make(chan []byte, 64)
	w.joinPlayer("Bob", out)
	bob := w.byName["Bob"]

	w.step(nil, nil, []SayEnvelope{sayEnv("P1", "Ghost", "hi")})
	evs := drainEvents(t, out)
	if len(evs) != 1 || evs[0]["code"] != protocol.ErrInvalidTarget {
		t.Fatalf("unknown npc: %+v", evs)
	}

	bob.Pos = [2]float64{50, 50}
	w.step(nil, nil, []SayEnvelope{sayEnv("P1", "Hank", "hi")})
	evs = drainEvents(t, out)
	if len(evs) != 1 || evs[0]["code"] != protocol.ErrOutOfRange {
		t.Fatalf("out of range: %+v", evs)
	}

	bob.Pos = [2]float64{0, 0}
	w.step(nil, nil, []SayEnvelope{sayEnv("P1", "Hank", "   ")})
	evs = drainEvents(t, out)
	if len(evs) != 1 || evs[0]["code"] != protocol.ErrProtoBadRequest {
		t.Fatalf("empty text: %+v", evs)
	}
	if w.requests.Len() != 0 {
		t.Fatalf("validation failures must not submit")
	}
}

func TestWorld_LongRepliesArriveInSections(t *testing.T) {
	long := strings.Repeat("a", 45)
	gw := &fakeGateway{reply: `{"sender_id":"Hank","receiver_id":"Bob","message":"` + long + `"}`}
	w, err := New(WorldConfig{TickRateHz: 100, BubbleChars: 20, Model: "test"}, testCatalogs(), testRoster(), gw)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	out := make(chan []byte, 64)
	w.joinPlayer("Bob", out)

	w.step(nil, nil, []SayEnvelope{sayEnv("P1", "Hank", "tell me everything")})

	var chats []string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(chats) < 3 {
		w.step(nil, nil, nil)
		for _, ev := range drainEvents(t, out) {
			if ev["type"] == "CHAT" && ev["from"] == "Hank" {
				chats = append(chats, ev["text"].(string))
			}
		}
		time.Sleep(time.Millisecond)
	}
	if len(chats) != 3 {
		t.Fatalf("expected 3 sections, got %d: %v", len(chats), chats)
	}
	if !strings.HasSuffix(chats[0], "...") || !strings.HasSuffix(chats[1], "...") {
		t.Fatalf("continuation marker missing: %v", chats)
	}
	if strings.HasSuffix(chats[2], "...") {
		t.Fatalf("final section has marker: %v", chats)
	}
	joined := strings.ReplaceAll(strings.Join(chats, ""), "...", "")
	if joined != long {
		t.Fatalf("reassembled text mismatch")
	}
}

type collectLogger struct {
	entries []TranscriptEntry
}

func (c *collectLogger) WriteTranscript(e TranscriptEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

func TestWorld_TranscriptLogged(t *testing.T) {
	gw := &fakeGateway{reply: `{"sender_id":"Hank","receiver_id":"Bob","message":"done","actions":[{"Give":{"item":"Bread","amount":1}}]}`}
	w := newTestWorld(t, gw)
	logger := &collectLogger{}
	w.AddTranscriptLogger(logger)
	out := make(chan []byte, 64)
	w.joinPlayer("Bob", out)
	w.byName["Hank"].Inventory.Add("Bread", 2)

	w.step(nil, nil, []SayEnvelope{sayEnv("P1", "Hank", "got bread?")})
	stepUntil(t, w, out, chatFrom("Hank"))

	if len(logger.entries) != 1 {
		t.Fatalf("expected 1 transcript entry, got %d", len(logger.entries))
	}
	e := logger.entries[0]
	if e.Requester != "Bob" || e.Responder != "Hank" || e.Prompt != "got bread?" || !e.OK {
		t.Fatalf("entry: %+v", e)
	}
	if len(e.Actions) != 1 || e.Actions[0].Item != "Bread" || !e.Actions[0].OK {
		t.Fatalf("entry actions: %+v", e.Actions)
	}
}
