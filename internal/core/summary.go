package core

import (
	"slices"
	"time"
)

// Balances are derived from a ledger on every read and never stored.
type Balances struct {
	GrossSaved  int64 `json:"grossSaved"`
	LoanBalance int64 `json:"loanBalance"`
	NetBalance  int64 `json:"netBalance"`
	GlobalTotal int64 `json:"globalTotal"`
}

// Report is the summary view of the active challenge.
type Report struct {
	Challenge     ChallengeConfig `json:"challenge"`
	TotalSaved    int64           `json:"totalSaved"`
	CurrentNet    int64           `json:"currentBalance"`
	LoanBalance   int64           `json:"loanBalance"`
	GlobalTotal   int64           `json:"globalTotalSaved"`
	Goal          int64           `json:"totalGoal"`
	Progress      float64         `json:"progress"`
	Remaining     int64           `json:"remaining"`
	SelectedCount int             `json:"selectedCount"`
	TotalItems    int64           `json:"totalItems"`
	History       []DepositRecord `json:"history"`
	Profile       UserProfile     `json:"profile"`
}

// BalancesOf computes the per-challenge balances; GlobalTotal is left to
// the caller because it needs other challenges' state.
func BalancesOf(l Ledger) Balances {
	return Balances{
		GrossSaved:  l.GrossSaved(),
		LoanBalance: l.LoanBalance(),
		NetBalance:  l.NetBalance(),
	}
}

// Progress is the net balance as a percentage of the goal.
func Progress(net, goal int64) float64 {
	if goal <= 0 {
		return 0
	}
	return float64(net) / float64(goal) * 100
}

// BuildReport assembles the report with history newest first.
func BuildReport(c ChallengeConfig, l Ledger, globalTotal int64, p UserProfile) Report {
	net := l.NetBalance()
	history := slices.Clone(l.History)
	slices.SortStableFunc(history, func(a, b DepositRecord) int {
		return recordTime(b).Compare(recordTime(a))
	})
	return Report{
		Challenge:     c,
		TotalSaved:    l.GrossSaved(),
		CurrentNet:    net,
		LoanBalance:   l.LoanBalance(),
		GlobalTotal:   globalTotal,
		Goal:          c.GoalAmount,
		Progress:      Progress(net, c.GoalAmount),
		Remaining:     c.GoalAmount - net,
		SelectedCount: len(l.Selected),
		TotalItems:    c.TotalItems,
		History:       history,
		Profile:       p,
	}
}

func recordTime(r DepositRecord) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
