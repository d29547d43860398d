package world

import (
	"fmt"

	"veldora.quest/internal/protocol"
)

// ActionReport is the outcome of one decoded action.
type ActionReport struct {
	Item   string
	Amount int
	OK     bool
	Code   string
	Detail string
}

// ExecutionReport is the outcome of applying one interaction's actions.
// Actions are independent: one failing does not roll back the others.
type ExecutionReport struct {
	Actions []ActionReport
}

func (r ExecutionReport) AllOK() bool {
	for _, a := range r.Actions {
		if !a.OK {
			return false
		}
	}
	return true
}

// applyInteraction applies each Give action: resolve both parties by
// name, resolve the item against the catalog, then remove from the
// sender before adding to the receiver so no partial transfer is ever
// visible. The caller surfaces the dialogue text only after this
// returns, keeping inventory effects observable before any message.
func (w *World) applyInteraction(it protocol.Interaction) ExecutionReport {
	var report ExecutionReport
	sender := w.byName[it.SenderID]
	receiver := w.byName[it.ReceiverID]

	for _, action := range it.Actions {
		give := action.Give
		if give == nil {
			continue
		}
		rep := ActionReport{Item: give.Item, Amount: give.Amount}
		switch {
		case sender == nil || receiver == nil:
			rep.Code = protocol.ErrInvalidTarget
			rep.Detail = "unknown sender or receiver"
		case !w.catalogHas(give.Item):
			rep.Code = protocol.ErrUnknownItem
			rep.Detail = fmt.Sprintf("item %q not in catalog", give.Item)
		case !sender.Inventory.Remove(give.Item, give.Amount):
			rep.Code = protocol.ErrNoStock
			rep.Detail = fmt.Sprintf("%s holds fewer than %d of %q", sender.Name, give.Amount, give.Item)
		default:
			receiver.Inventory.Add(give.Item, give.Amount)
			rep.OK = true
		}
		report.Actions = append(report.Actions, rep)
	}
	return report
}

func (w *World) catalogHas(name string) bool {
	_, ok := w.catalogs.Items.Lookup(name)
	return ok
}
