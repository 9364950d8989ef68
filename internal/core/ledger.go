package core

import (
	"slices"
	"time"
)

// ToggleAction describes what a slot toggle did.
type ToggleAction string

const (
	ActionDeposited ToggleAction = "deposited"
	ActionRemoved   ToggleAction = "removed"
	ActionRepaid    ToggleAction = "repaid"
)

// Ledger is the working set of one challenge: deposited slots, the subset
// currently withdrawn, and the deposit/withdrawal history.
type Ledger struct {
	Selected []int64         `json:"selected"`
	Loaned   []int64         `json:"loaned"`
	History  []DepositRecord `json:"history"`
}

// Toggle flips the state of a slot.
//
// A loaned slot is repaid and stays deposited. A deposited slot is removed
// together with every timestamped history record carrying its value. Any
// other slot is deposited and logged.
func (l *Ledger) Toggle(value int64, now time.Time) ToggleAction {
	if slices.Contains(l.Loaned, value) {
		l.Loaned = without(l.Loaned, value)
		return ActionRepaid
	}

	if slices.Contains(l.Selected, value) {
		l.Selected = without(l.Selected, value)
		kept := l.History[:0:0]
		for _, rec := range l.History {
			if rec.Value != float64(value) || rec.Timestamp == "" {
				kept = append(kept, rec)
			}
		}
		l.History = kept
		return ActionRemoved
	}

	l.Selected = append(l.Selected, value)
	l.History = append(l.History, DepositRecord{
		Value:     float64(value),
		Timestamp: now.UTC().Format(TimestampLayout),
		Type:      Deposit,
	})
	return ActionDeposited
}

// Withdraw marks deposited slots as loaned, largest first, until their sum
// covers amount. Whole slots are marked, so the loaned value may exceed the
// request. The history records the requested amount.
func (l *Ledger) Withdraw(amount Money, now time.Time) ([]int64, error) {
	if amount.Cents <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount.Cents > l.NetBalance()*100 {
		return nil, ErrInsufficientFunds
	}

	available := make([]int64, 0, len(l.Selected))
	for _, v := range l.Selected {
		if !slices.Contains(l.Loaned, v) {
			available = append(available, v)
		}
	}
	slices.SortFunc(available, func(a, b int64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})

	remaining := amount.Cents
	var toLoan []int64
	for _, v := range available {
		if remaining <= 0 {
			break
		}
		toLoan = append(toLoan, v)
		remaining -= v * 100
	}

	l.Loaned = append(l.Loaned, toLoan...)
	l.History = append(l.History, DepositRecord{
		Value:     -amount.Pesos(),
		Timestamp: now.UTC().Format(TimestampLayout),
		Type:      Withdrawal,
	})
	return toLoan, nil
}

// CashOut resets the ledger.
func (l *Ledger) CashOut() {
	l.Selected = nil
	l.Loaned = nil
	l.History = nil
}

// GrossSaved is the sum of every deposited slot, loaned or not.
func (l Ledger) GrossSaved() int64 {
	return sum(l.Selected)
}

// LoanBalance is the value currently withdrawn and owed back.
func (l Ledger) LoanBalance() int64 {
	return sum(l.Loaned)
}

// NetBalance is the sum of deposited slots that are not loaned.
func (l Ledger) NetBalance() int64 {
	var total int64
	for _, v := range l.Selected {
		if !slices.Contains(l.Loaned, v) {
			total += v
		}
	}
	return total
}

// IsSelected reports whether v is deposited.
func (l Ledger) IsSelected(v int64) bool { return slices.Contains(l.Selected, v) }

// IsLoaned reports whether v is withdrawn.
func (l Ledger) IsLoaned(v int64) bool { return slices.Contains(l.Loaned, v) }

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	return Ledger{
		Selected: slices.Clone(l.Selected),
		Loaned:   slices.Clone(l.Loaned),
		History:  slices.Clone(l.History),
	}
}

func without(in []int64, v int64) []int64 {
	out := make([]int64, 0, len(in))
	for _, x := range in {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func sum(in []int64) int64 {
	var total int64
	for _, v := range in {
		total += v
	}
	return total
}
