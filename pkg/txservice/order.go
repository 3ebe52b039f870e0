package txservice

import (
	"sort"
	"strings"
	"time"

	"github.com/safekit/safed/pkg/transaction"
)

// orderingDate picks the timestamp a transaction sorts by: the most final
// date it has. The second return is false when the transaction carries no
// timestamp at all.
func orderingDate(t *transaction.Transaction) (time.Time, bool) {
	switch {
	case t.ProcessedDate != nil:
		return *t.ProcessedDate, true
	case t.SubmittedDate != nil:
		return *t.SubmittedDate, true
	case t.RejectedDate != nil:
		return *t.RejectedDate, true
	case !t.UpdatedDate.IsZero():
		return t.UpdatedDate, true
	case !t.CreatedDate.IsZero():
		return t.CreatedDate, true
	default:
		return time.Time{}, false
	}
}

// Compare orders transactions for display: entries without any timestamp
// first, then newer first, then by status ordinal, then by ID for a
// stable total order.
func Compare(a, b *transaction.Transaction) int {
	da, aDated := orderingDate(a)
	db, bDated := orderingDate(b)
	switch {
	case !aDated && bDated:
		return -1
	case aDated && !bDated:
		return 1
	case aDated && bDated && !da.Equal(db):
		if da.After(db) {
			return -1
		}
		return 1
	}
	if a.Status != b.Status {
		return int(a.Status) - int(b.Status)
	}
	return strings.Compare(string(a.ID), string(b.ID))
}

// Sort sorts transactions in display order.
func Sort(list []*transaction.Transaction) {
	sort.SliceStable(list, func(i, j int) bool { return Compare(list[i], list[j]) < 0 })
}

// Group is one display section of the transaction list.
type Group struct {
	// Pending marks the section of in-flight transactions, shown first.
	Pending bool
	// Date is the calendar day (midnight UTC) of processed transactions.
	// Zero for the pending section and for transactions that never
	// reached the chain.
	Date time.Time

	Transactions []*transaction.Transaction
}

// GroupByDay partitions sorted transactions into display sections: the
// pending section first, then one section per calendar day of the
// processing date, newest day first. Transactions without a processing
// date share the zero-date section right after pending.
func GroupByDay(list []*transaction.Transaction) []Group {
	sorted := make([]*transaction.Transaction, len(list))
	copy(sorted, list)
	Sort(sorted)

	var pending, undated []*transaction.Transaction
	days := map[time.Time][]*transaction.Transaction{}
	var dayOrder []time.Time
	for _, t := range sorted {
		switch {
		case t.Status == transaction.StatusPending:
			pending = append(pending, t)
		case t.ProcessedDate == nil:
			undated = append(undated, t)
		default:
			day := t.ProcessedDate.UTC().Truncate(24 * time.Hour)
			if _, seen := days[day]; !seen {
				dayOrder = append(dayOrder, day)
			}
			days[day] = append(days[day], t)
		}
	}

	var groups []Group
	if len(pending) > 0 {
		groups = append(groups, Group{Pending: true, Transactions: pending})
	}
	if len(undated) > 0 {
		groups = append(groups, Group{Transactions: undated})
	}
	sort.Slice(dayOrder, func(i, j int) bool { return dayOrder[i].After(dayOrder[j]) })
	for _, day := range dayOrder {
		groups = append(groups, Group{Date: day, Transactions: days[day]})
	}
	return groups
}
