package world

import (
	"context"
	"sort"
	"sync"

	"veldora.quest/internal/llm"
	"veldora.quest/internal/protocol"
)

// pairKey identifies an ordered (requester, responder) actor pair.
func pairKey(requester, responder string) string {
	return requester + "-" + responder
}

type exchangeResult struct {
	interaction protocol.Interaction
	raw         string
	err         error // gateway failure; interaction holds the fallback
}

type pendingRequest struct {
	requester string
	responder string
	prompt    string
	cancel    context.CancelFunc
	done      chan exchangeResult // buffered, written exactly once
}

// Requests tracks at most one in-flight model exchange per actor pair.
// Submit rejects a second submission for a key that is still pending, so
// no handle is ever silently replaced and no result is ever dropped.
// The registry is owned by the world and only touched from the tick
// goroutine; workers communicate through the per-request done channel.
type Requests struct {
	gateway llm.Gateway
	pending map[string]*pendingRequest
	wg      sync.WaitGroup
}

func NewRequests(g llm.Gateway) *Requests {
	return &Requests{gateway: g, pending: map[string]*pendingRequest{}}
}

func (r *Requests) Pending(key string) bool {
	_, ok := r.pending[key]
	return ok
}

func (r *Requests) Len() int { return len(r.pending) }

// Submit starts a background exchange for the pair. The history is a
// snapshot; the worker never touches live actor state. Returns false if
// the pair already has an exchange in flight.
func (r *Requests) Submit(requester, responder, prompt string, history []protocol.ChatMessage) bool {
	key := pairKey(requester, responder)
	if _, exists := r.pending[key]; exists {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &pendingRequest{
		requester: requester,
		responder: responder,
		prompt:    prompt,
		cancel:    cancel,
		done:      make(chan exchangeResult, 1),
	}
	r.pending[key] = p
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		reply, err := r.gateway.Exchange(ctx, history)
		if err != nil {
			p.done <- exchangeResult{
				interaction: protocol.FallbackInteraction("the model backend is unavailable"),
				err:         err,
			}
			return
		}
		p.done <- exchangeResult{interaction: protocol.DecodeReply(reply.Content), raw: reply.Content}
	}()
	return true
}

// Completed couples a finished exchange with its pair identity.
type Completed struct {
	Key         string
	Requester   string
	Responder   string
	Prompt      string
	Interaction protocol.Interaction
	Raw         string
	Err         error
}

// PollTick non-blockingly checks every pending exchange, removing and
// returning the ones that finished. Each result is yielded exactly once.
// Keys are walked in sorted order so a tick's results are deterministic.
func (r *Requests) PollTick() []Completed {
	if len(r.pending) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.pending))
	for k := range r.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Completed
	for _, k := range keys {
		p := r.pending[k]
		select {
		case res := <-p.done:
			delete(r.pending, k)
			p.cancel()
			out = append(out, Completed{
				Key:         k,
				Requester:   p.requester,
				Responder:   p.responder,
				Prompt:      p.prompt,
				Interaction: res.interaction,
				Raw:         res.raw,
				Err:         res.err,
			})
		default:
		}
	}
	return out
}

// Drain cancels all outstanding exchanges and waits for their workers.
// Results that arrive after Drain are discarded with the registry.
func (r *Requests) Drain() {
	for k, p := range r.pending {
		p.cancel()
		delete(r.pending, k)
	}
	r.wg.Wait()
}
