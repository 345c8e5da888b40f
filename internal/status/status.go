package status

import "fmt"

// Status is the lifecycle stage shared by an order and its shipment.
type Status string

const (
	Pending        Status = "PENDING"
	Confirmed      Status = "CONFIRMED"
	Shipped        Status = "SHIPPED"
	InTransit      Status = "IN_TRANSIT"
	ReadyForPickup Status = "READY_FOR_PICKUP"
	Delivered      Status = "DELIVERED"
	Completed      Status = "COMPLETED"
	Cancelled      Status = "CANCELLED"
	Returned       Status = "RETURNED"
)

// All lists every known status, in lifecycle order.
var All = []Status{
	Pending, Confirmed, Shipped, InTransit, ReadyForPickup,
	Delivered, Completed, Cancelled, Returned,
}

// InvalidTransitionError reports a status change that is not allowed by the
// transition table. The persisted order must stay untouched when it is raised.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Rules holds the successor table. The table is the single authority on which
// status changes are legal; it is built once and never mutated afterwards.
type Rules struct {
	next map[Status][]Status
}

// NewRules builds the transition table. allowDirectDispatch additionally
// permits PENDING -> SHIPPED, skipping confirmation. That shortcut existed in
// production by accident, so it stays behind a flag and is off by default.
func NewRules(allowDirectDispatch bool) *Rules {
	next := map[Status][]Status{
		Pending:        {Confirmed, Cancelled},
		Confirmed:      {Shipped, Cancelled},
		Shipped:        {InTransit, Delivered, Cancelled},
		InTransit:      {ReadyForPickup, Delivered, Cancelled},
		ReadyForPickup: {Delivered, Returned, Cancelled},
		Delivered:      {Completed, Returned},
		Cancelled:      {},
		Returned:       {},
	}
	if allowDirectDispatch {
		next[Pending] = []Status{Confirmed, Shipped, Cancelled}
	}
	return &Rules{next: next}
}

// CanTransition reports whether to is a legal successor of from.
func (r *Rules) CanTransition(from, to Status) bool {
	for _, s := range r.next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Validate returns an *InvalidTransitionError when the change is not allowed.
func (r *Rules) Validate(from, to Status) error {
	if !r.CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// Successors returns a copy of the allowed next statuses for from.
func (r *Rules) Successors(from Status) []Status {
	out := make([]Status, len(r.next[from]))
	copy(out, r.next[from])
	return out
}

// IsTerminal reports whether s admits no outgoing transitions.
func (r *Rules) IsTerminal(s Status) bool {
	return len(r.next[s]) == 0
}

// IsValid reports whether s is a member of the status domain.
func IsValid(s Status) bool {
	for _, known := range All {
		if s == known {
			return true
		}
	}
	return false
}
