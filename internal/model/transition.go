package model

import (
	"errors"
	"fmt"
)

var ErrIllegalTransition = errors.New("illegal transaction status transition")

// transitions is the single legal-transition table for Transaction.Status.
// The payout orchestrator only ever applies processing -> pending|failed;
// the reconciliation listener only ever applies pending -> completed|failed
// plus the pending -> pending self-loop (unclaimed replays). completed and
// failed are terminal.
var transitions = map[TransactionStatus]map[TransactionStatus]bool{
	TransactionStatusProcessing: {
		TransactionStatusPending: true,
		TransactionStatusFailed:  true,
	},
	TransactionStatusPending: {
		TransactionStatusPending:   true,
		TransactionStatusCompleted: true,
		TransactionStatusFailed:    true,
	},
	TransactionStatusCompleted: {},
	TransactionStatusFailed:    {},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to TransactionStatus) bool {
	return transitions[from][to]
}

// CheckTransition returns ErrIllegalTransition (wrapped with the offending
// pair) when from -> to is not in the table.
func CheckTransition(from, to TransactionStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// Terminal reports whether no transition leads out of s.
func (s TransactionStatus) Terminal() bool {
	return len(transitions[s]) == 0
}
