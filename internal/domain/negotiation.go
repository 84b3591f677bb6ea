package domain

import "errors"

// Negotiation protocol statuses. Accepted, Rejected and Exhausted are
// terminal: once reached, no further attempts are admitted.
const (
	NegotiationIdle       = "idle"
	NegotiationInProgress = "in_progress"
	NegotiationAccepted   = "accepted"
	NegotiationRejected   = "rejected"
	NegotiationExhausted  = "exhausted"
)

// Attempt outcomes as recorded in the attempt history.
const (
	AttemptPending  = "pending"
	AttemptAccepted = "accepted"
	AttemptRejected = "rejected"
)

var (
	ErrAttemptOutOfOrder     = errors.New("negotiation attempt out of order")
	ErrAttemptsExhausted     = errors.New("negotiation attempts exhausted")
	ErrNegotiationNotFinal   = errors.New("negotiation not final")
	ErrNegotiationTerminal   = errors.New("negotiation already in terminal state")
	ErrConcurrentNegotiation = errors.New("concurrent negotiation attempt detected")
)

// NegotiationAttempt is one recorded round of the bargaining protocol.
type NegotiationAttempt struct {
	AttemptNumber int     `json:"attemptNumber"`
	Amount        float64 `json:"amount"`
	Outcome       string  `json:"outcome"`
}

// Negotiation is the per-line state of the bargaining protocol. Attempts are
// ordered by AttemptNumber, strictly increasing from 1.
type Negotiation struct {
	Status          string               `json:"status"`
	NegotiatedPrice float64              `json:"negotiatedPrice"`
	Attempts        []NegotiationAttempt `json:"attempts"`
}

// NewNegotiation returns the initial (Idle) state.
func NewNegotiation() Negotiation {
	return Negotiation{Status: NegotiationIdle}
}

// LastAttempt returns the highest recorded attempt number, 0 when idle.
func (n Negotiation) LastAttempt() int {
	if len(n.Attempts) == 0 {
		return 0
	}
	return n.Attempts[len(n.Attempts)-1].AttemptNumber
}

// IsTerminal reports whether the protocol has ended.
func (n Negotiation) IsTerminal() bool {
	switch n.Status {
	case NegotiationAccepted, NegotiationRejected, NegotiationExhausted:
		return true
	}
	return false
}

// Replay returns the previously recorded attempt when the same
// (attemptNumber, amount) pair is submitted again, so retried client
// requests observe the original outcome instead of a re-evaluation.
func (n Negotiation) Replay(attemptNumber int, amount float64) (*NegotiationAttempt, bool) {
	for i := range n.Attempts {
		a := &n.Attempts[i]
		if a.AttemptNumber == attemptNumber && a.Amount == amount {
			return a, true
		}
	}
	return nil, false
}
