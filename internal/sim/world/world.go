package world

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"veldora.quest/internal/llm"
	"veldora.quest/internal/protocol"
	"veldora.quest/internal/sim/catalogs"
	"veldora.quest/internal/sim/roster"
)

type WorldConfig struct {
	ID          string
	TickRateHz  int
	TalkRadius  float64
	Model       string
	BubbleChars int // max characters of a CHAT section
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Catalog protocol.CatalogMsg
}

type SayEnvelope struct {
	PlayerID string
	Say      protocol.SayMsg
}

type clientState struct {
	Out chan []byte
}

type bubble struct {
	from string
	text string
}

// World is a single-threaded authoritative simulation. All state is
// accessed only from the world loop goroutine; background model
// exchanges operate on snapshots and hand owned results back through
// the request registry.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs

	tick atomic.Uint64

	actors  map[string]*Actor // by ID
	byName  map[string]*Actor // dialogue identity, unique across the world
	npcs    []*Actor          // roster order
	clients map[string]*clientState

	requests *Requests

	// Queued CHAT sections per player ID, one delivered per tick.
	bubbles map[string][]bubble

	inbox chan SayEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	nextPlayerNum atomic.Uint64

	// Optional transcript sinks (may be nil).
	transcripts []TranscriptLogger
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, ros roster.Config, gw llm.Gateway) (*World, error) {
	if cfg.ID == "" {
		cfg.ID = "veldora"
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 10
	}
	if cfg.TalkRadius <= 0 {
		cfg.TalkRadius = 2.0
	}
	if cfg.BubbleChars <= 0 {
		cfg.BubbleChars = 200
	}

	w := &World{
		cfg:      cfg,
		catalogs: cats,
		actors:   map[string]*Actor{},
		byName:   map[string]*Actor{},
		clients:  map[string]*clientState{},
		requests: NewRequests(gw),
		bubbles:  map[string][]bubble{},
		inbox:    make(chan SayEnvelope, 256),
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 64),
		stop:     make(chan struct{}),
	}

	for i, spec := range ros.Npcs {
		for item := range spec.Inventory {
			if _, ok := cats.Items.Lookup(item); !ok {
				return nil, fmt.Errorf("npc %s: starting item %q not in catalog", spec.Name, item)
			}
		}
		a := &Actor{
			ID:         fmt.Sprintf("N%d", i+1),
			Name:       spec.Name,
			Kind:       KindNpc,
			Pos:        spec.Pos,
			Occupation: spec.Occupation,
			Backstory:  spec.Backstory,
			Inventory:  NewLedger(),
			Convo:      NewConversation(spec.Name, spec.Occupation, spec.Backstory),
		}
		for item, count := range spec.Inventory {
			a.Inventory.Add(item, count)
		}
		if w.byName[a.Name] != nil {
			return nil, fmt.Errorf("duplicate actor name %q", a.Name)
		}
		w.actors[a.ID] = a
		w.byName[a.Name] = a
		w.npcs = append(w.npcs, a)
	}
	return w, nil
}

// AddTranscriptLogger registers an observability sink. Call before Run.
func (w *World) AddTranscriptLogger(l TranscriptLogger) {
	if l != nil {
		w.transcripts = append(w.transcripts, l)
	}
}

func (w *World) Inbox() chan<- SayEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest  { return w.join }
func (w *World) Leave() chan<- string      { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.requests.Drain()

	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingSays []SayEnvelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingSays = append(pendingSays, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingSays)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingSays = pendingSays[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// step advances the world one tick: joins and leaves first, then new
// dialogue submissions, then completed exchanges, then queued bubble
// sections, then the per-client event flush.
func (w *World) step(joins []JoinRequest, leaves []string, says []SayEnvelope) {
	nowTick := w.tick.Load()

	for _, id := range leaves {
		w.handleLeave(id)
	}
	for _, req := range joins {
		resp := w.joinPlayer(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
	}
	for _, env := range says {
		w.handleSay(env.PlayerID, env.Say, nowTick)
	}

	for _, c := range w.requests.PollTick() {
		w.handleCompletion(c, nowTick)
	}

	for id := range w.bubbles {
		queue := w.bubbles[id]
		a := w.actors[id]
		if a == nil || len(queue) == 0 {
			delete(w.bubbles, id)
			continue
		}
		b := queue[0]
		if len(queue) == 1 {
			delete(w.bubbles, id)
		} else {
			w.bubbles[id] = queue[1:]
		}
		a.AddEvent(chatEvent(nowTick, b.from, b.text))
	}

	w.flushEvents(nowTick)
	w.tick.Add(1)
}

func (w *World) joinPlayer(name string, out chan []byte) JoinResponse {
	if strings.TrimSpace(name) == "" {
		name = "player"
	}
	base := name
	for i := 2; w.byName[name] != nil; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}

	idNum := w.nextPlayerNum.Add(1)
	id := fmt.Sprintf("P%d", idNum)
	a := &Actor{
		ID:        id,
		Name:      name,
		Kind:      KindPlayer,
		Inventory: NewLedger(),
	}
	// Starter purse so trades are possible right away.
	if w.catalogHas("Gold Coin") {
		a.Inventory.Add("Gold Coin", 60)
	}
	w.actors[id] = a
	w.byName[name] = a
	if out != nil {
		w.clients[id] = &clientState{Out: out}
	}

	npcRefs := make([]protocol.NpcRef, 0, len(w.npcs))
	for _, n := range w.npcs {
		npcRefs = append(npcRefs, protocol.NpcRef{Name: n.Name, Occupation: n.Occupation, Pos: n.Pos})
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        id,
		WorldParams: protocol.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			TalkRadius: w.cfg.TalkRadius,
			Model:      w.cfg.Model,
		},
		ItemsDigest: w.catalogs.Items.Digest,
		Npcs:        npcRefs,
	}
	return JoinResponse{Welcome: welcome, Catalog: w.itemCatalogMsg()}
}

func (w *World) itemCatalogMsg() protocol.CatalogMsg {
	defs := make([]catalogs.ItemDef, 0, len(w.catalogs.Items.Names))
	for _, name := range w.catalogs.Items.Names {
		defs = append(defs, w.catalogs.Items.ByName[name])
	}
	return protocol.CatalogMsg{
		Type:            protocol.TypeCatalog,
		ProtocolVersion: protocol.Version,
		Name:            "items",
		Digest:          w.catalogs.Items.Digest,
		Data:            defs,
	}
}

func (w *World) handleLeave(id string) {
	a := w.actors[id]
	if a == nil {
		return
	}
	delete(w.clients, id)
	delete(w.actors, id)
	delete(w.byName, a.Name)
	delete(w.bubbles, id)
	// A pending exchange for this player still runs to completion; its
	// result is logged to the transcript and the events are dropped.
}

func (w *World) handleSay(playerID string, say protocol.SayMsg, nowTick uint64) {
	player := w.actors[playerID]
	if player == nil || player.Kind != KindPlayer {
		return
	}
	text := strings.TrimSpace(say.Text)
	if text == "" {
		player.AddEvent(actionResult(nowTick, say.To, false, protocol.ErrProtoBadRequest, "empty text"))
		return
	}
	npc := w.byName[say.To]
	if npc == nil || npc.Kind != KindNpc {
		player.AddEvent(actionResult(nowTick, say.To, false, protocol.ErrInvalidTarget, "no such npc"))
		return
	}
	if player.distanceTo(npc) >= w.cfg.TalkRadius {
		player.AddEvent(actionResult(nowTick, say.To, false, protocol.ErrOutOfRange, "too far away to talk"))
		return
	}
	key := pairKey(player.Name, npc.Name)
	if w.requests.Pending(key) {
		player.AddEvent(actionResult(nowTick, key, false, protocol.ErrDialoguePending, "previous exchange still in flight"))
		return
	}

	npc.Convo.Append(protocol.ChatMessage{Role: protocol.RoleUser, Content: text})

	payload, err := protocol.EncodeInteraction(protocol.Interaction{
		SenderID:   player.Name,
		ReceiverID: npc.Name,
		Message:    text,
	}, npc.Inventory.WireSnapshot())
	if err != nil {
		player.AddEvent(actionResult(nowTick, key, false, protocol.ErrInternal, "encode failed"))
		return
	}
	history := npc.Convo.History()
	history = append(history, protocol.ChatMessage{Role: protocol.RoleUser, Content: payload})

	// Pending was checked above on the same goroutine, so the pair key
	// is free here.
	if !w.requests.Submit(player.Name, npc.Name, text, history) {
		player.AddEvent(actionResult(nowTick, key, false, protocol.ErrInternal, "exchange already in flight"))
		return
	}
	player.AddEvent(chatEvent(nowTick, player.Name, text))
	player.AddEvent(inputEvent(nowTick, false))
}

func (w *World) handleCompletion(c Completed, nowTick uint64) {
	requester := w.byName[c.Requester]

	entry := TranscriptEntry{
		Tick:      nowTick,
		Requester: c.Requester,
		Responder: c.Responder,
		Prompt:    c.Prompt,
		Reply:     c.Raw,
		Message:   c.Interaction.Message,
	}

	code := ""
	switch {
	case c.Err != nil:
		code = protocol.ErrLLMUnavailable
	case protocol.IsFallback(c.Interaction):
		code = protocol.ErrDecode
	}
	if code != "" {
		entry.Code = code
		if requester != nil {
			requester.AddEvent(actionResult(nowTick, c.Key, false, code, c.Interaction.Message))
			requester.AddEvent(chatEvent(nowTick, c.Responder, "(something went wrong)"))
			requester.AddEvent(inputEvent(nowTick, true))
		}
		w.writeTranscript(entry)
		return
	}

	report := w.applyInteraction(c.Interaction)
	for _, rep := range report.Actions {
		entry.Actions = append(entry.Actions, TranscriptAction{Item: rep.Item, Amount: rep.Amount, OK: rep.OK, Code: rep.Code})
		if requester != nil && !rep.OK {
			requester.AddEvent(actionResult(nowTick, c.Key, false, rep.Code, rep.Detail))
		}
	}
	entry.OK = report.AllOK()

	// The assistant turn lands in the conversation only after actions
	// are applied, matching the transfer-before-message ordering of the
	// legacy dialect sort.
	responder := w.byName[c.Responder]
	if responder != nil && responder.Convo != nil {
		responder.Convo.Append(protocol.ChatMessage{Role: protocol.RoleAssistant, Content: c.Interaction.Message})
	}

	if requester != nil {
		sections := sectionText(c.Interaction.Message, w.cfg.BubbleChars)
		if len(sections) > 0 {
			requester.AddEvent(chatEvent(nowTick, c.Responder, sections[0]))
			for _, s := range sections[1:] {
				w.bubbles[requester.ID] = append(w.bubbles[requester.ID], bubble{from: c.Responder, text: s})
			}
		}
		requester.AddEvent(actionResult(nowTick, c.Key, entry.OK, "", ""))
		requester.AddEvent(inputEvent(nowTick, true))
	}
	w.writeTranscript(entry)
}

func (w *World) writeTranscript(entry TranscriptEntry) {
	for _, t := range w.transcripts {
		_ = t.WriteTranscript(entry)
	}
}

func (w *World) flushEvents(nowTick uint64) {
	ids := make([]string, 0, len(w.clients))
	for id := range w.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		cl := w.clients[id]
		a := w.actors[id]
		if a == nil || len(a.Events) == 0 {
			continue
		}
		msg := protocol.EventMsg{
			Type:            protocol.TypeEvent,
			ProtocolVersion: protocol.Version,
			Tick:            nowTick,
			Events:          a.Events,
		}
		if b, err := json.Marshal(msg); err == nil {
			sendLatest(cl.Out, b)
		}
		a.Events = nil
	}
	// Events accumulated for actors without a client go nowhere.
	for _, a := range w.actors {
		if len(a.Events) != 0 && w.clients[a.ID] == nil {
			a.Events = nil
		}
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

// sectionText splits a long reply into bubble-sized sections; every
// section but the last gets a continuation ellipsis.
func sectionText(s string, n int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	if n <= 0 || len(runes) <= n {
		return []string{s}
	}
	var out []string
	for start := 0; start < len(runes); start += n {
		end := start + n
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
		} else {
			out = append(out, string(runes[start:end])+"...")
		}
	}
	return out
}
