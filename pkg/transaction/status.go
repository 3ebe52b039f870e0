package transaction

// Status is one step of a transaction's lifecycle. The ordinal values back
// the deterministic list ordering, so they are fixed.
type Status int

const (
	// StatusDraft allows changing any transaction data.
	StatusDraft Status = iota
	// StatusSigning freezes amount, fee, data and operation while
	// signatures are still collected.
	StatusSigning
	// StatusPending means the transaction was submitted to the chain;
	// everything is immutable except a late hash assignment.
	StatusPending
	// StatusRejected means an owner refused to sign.
	StatusRejected
	// StatusFailed means the chain mined the transaction but it failed.
	StatusFailed
	// StatusSuccess means the transaction was mined successfully.
	StatusSuccess
	// StatusDiscarded hides the transaction from the user; reachable from
	// any other status, reversible only back to draft.
	StatusDiscarded
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusSigning:
		return "signing"
	case StatusPending:
		return "pending"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	case StatusSuccess:
		return "success"
	case StatusDiscarded:
		return "discarded"
	}
	return "unknown"
}

var allowedTransitions = map[Status][]Status{
	StatusDraft:     {StatusSigning, StatusDiscarded},
	StatusSigning:   {StatusDraft, StatusRejected, StatusPending, StatusDiscarded},
	StatusRejected:  {StatusDiscarded},
	StatusPending:   {StatusSuccess, StatusFailed, StatusDiscarded},
	StatusSuccess:   {StatusDiscarded},
	StatusFailed:    {StatusDiscarded},
	StatusDiscarded: {StatusDraft},
}

// CanTransitionTo reports whether the status lattice allows moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
