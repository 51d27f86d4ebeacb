package domain

// Action names the permission checked for an order operation.
type Action string

const (
	ActionCreate               Action = "order.create"
	ActionView                 Action = "order.view"
	ActionAssign               Action = "order.assign"
	ActionStart                Action = "order.start"
	ActionComplete             Action = "order.complete"
	ActionRequestClarification Action = "order.request_clarification"
	ActionAnswerClarification  Action = "order.answer_clarification"
	ActionClose                Action = "order.close"
	ActionCancel               Action = "order.cancel"
	ActionMarkPaid             Action = "order.mark_paid"
)

// Party is a relationship between an actor and a specific order.
type Party string

const (
	PartyOwner       Party = "owner"
	PartyInterpreter Party = "assigned_interpreter"
	PartyAdmin       Party = "admin"
	PartySystem      Party = "system"
)

type Edge struct {
	From Status
	To   Status
}

// Rule is what an edge requires: the permission and the parties allowed to
// take it.
type Rule struct {
	Action  Action
	Parties []Party
}

func (r Rule) Allows(p Party) bool {
	for _, allowed := range r.Parties {
		if allowed == p {
			return true
		}
	}
	return false
}

// Cancel is only reachable before completion. Completion writes the ledger
// entry and the ledger has no reversal.
var cancellers = []Party{PartyAdmin, PartySystem}

var transitions = map[Edge]Rule{
	{StatusNew, StatusAssigned}:                     {Action: ActionAssign, Parties: []Party{PartyOwner, PartyAdmin, PartySystem}},
	{StatusAssigned, StatusInProgress}:              {Action: ActionStart, Parties: []Party{PartyInterpreter}},
	{StatusInProgress, StatusCompleted}:             {Action: ActionComplete, Parties: []Party{PartyInterpreter}},
	{StatusCompleted, StatusClarificationRequested}: {Action: ActionRequestClarification, Parties: []Party{PartyOwner}},
	{StatusClarificationRequested, StatusClosed}:    {Action: ActionAnswerClarification, Parties: []Party{PartyInterpreter}},
	{StatusCompleted, StatusClosed}:                 {Action: ActionClose, Parties: []Party{PartyOwner, PartyAdmin}},
	{StatusNew, StatusCancelled}:                    {Action: ActionCancel, Parties: cancellers},
	{StatusAssigned, StatusCancelled}:               {Action: ActionCancel, Parties: cancellers},
	{StatusInProgress, StatusCancelled}:             {Action: ActionCancel, Parties: cancellers},
}

// LookupTransition returns the rule for from -> to, or false when the edge does
// not exist.
func LookupTransition(from, to Status) (Rule, bool) {
	rule, ok := transitions[Edge{From: from, To: to}]
	return rule, ok
}

// Edges lists every legal edge.
func Edges() []Edge {
	out := make([]Edge, 0, len(transitions))
	for edge := range transitions {
		out = append(out, edge)
	}
	return out
}
