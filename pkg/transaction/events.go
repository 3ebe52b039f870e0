package transaction

// EventStatusUpdated fires whenever a transaction's status changes outside
// of a direct user action, e.g. when a pending transaction gets mined.
const EventStatusUpdated = "transaction.status_updated"

// StatusUpdated carries the new status of a transaction.
type StatusUpdated struct {
	TransactionID ID
	Status        Status
}

func (StatusUpdated) EventType() string { return EventStatusUpdated }
