package pricing

import (
	"fmt"

	"damdar-backend/internal/domain"
)

// NegotiationRules are the inputs the state machine evaluates a proposal
// against. ReferencePrice is the line's catalog unit price; the percentages
// come from the offer item.
type NegotiationRules struct {
	ReferencePrice  float64
	SuccessPercent  float64
	FailurePercent  float64
	AttemptsAllowed int
}

// AcceptFloor is the lowest proposal the seller accepts outright.
func (r NegotiationRules) AcceptFloor() float64 {
	return r.ReferencePrice * (1 - r.SuccessPercent/100)
}

// RejectFloor is the threshold below which bargaining ends immediately.
func (r NegotiationRules) RejectFloor() float64 {
	return r.ReferencePrice * (1 - r.FailurePercent/100)
}

// AdvanceNegotiation applies one proposed price to the state machine and
// returns the new state plus the recorded attempt. The input state is not
// mutated.
//
// The accept/reject rule is deterministic and monotonic in the proposal:
//
//	amount >= reference*(1 - success%/100)  -> Accepted (terminal)
//	amount <  reference*(1 - failure%/100)  -> Rejected (terminal)
//	otherwise                               -> attempt rejected; InProgress
//	                                           until attempts run out, then
//	                                           Exhausted (terminal)
//
// Replaying an already-recorded (attemptNumber, amount) pair returns the
// stored outcome unchanged, so retried requests are idempotent.
func AdvanceNegotiation(state domain.Negotiation, rules NegotiationRules, attemptNumber int, amount float64) (domain.Negotiation, domain.NegotiationAttempt, error) {
	if attemptNumber < 1 {
		return state, domain.NegotiationAttempt{}, fmt.Errorf("%w: attempt number must be >= 1", domain.ErrValidation)
	}
	if amount <= 0 {
		return state, domain.NegotiationAttempt{}, fmt.Errorf("%w: proposed amount must be positive", domain.ErrValidation)
	}

	// Idempotent replay of a recorded attempt.
	if prev, ok := state.Replay(attemptNumber, amount); ok {
		return state, *prev, nil
	}

	last := state.LastAttempt()
	if attemptNumber != last+1 {
		return state, domain.NegotiationAttempt{}, fmt.Errorf("%w: expected attempt %d, got %d", domain.ErrAttemptOutOfOrder, last+1, attemptNumber)
	}

	// Past the attempt cap the protocol is over regardless of the amount.
	if rules.AttemptsAllowed > 0 && attemptNumber > rules.AttemptsAllowed {
		next := state
		if !next.IsTerminal() {
			next = clone(state)
			next.Status = domain.NegotiationExhausted
		}
		return next, domain.NegotiationAttempt{}, domain.ErrAttemptsExhausted
	}

	if state.IsTerminal() {
		if state.Status == domain.NegotiationExhausted {
			return state, domain.NegotiationAttempt{}, domain.ErrAttemptsExhausted
		}
		return state, domain.NegotiationAttempt{}, domain.ErrNegotiationTerminal
	}

	attempt := domain.NegotiationAttempt{
		AttemptNumber: attemptNumber,
		Amount:        amount,
	}

	next := clone(state)
	switch {
	case amount >= rules.AcceptFloor():
		attempt.Outcome = domain.AttemptAccepted
		next.Status = domain.NegotiationAccepted
		next.NegotiatedPrice = RoundMinor(amount)
	case amount < rules.RejectFloor():
		attempt.Outcome = domain.AttemptRejected
		next.Status = domain.NegotiationRejected
	default:
		attempt.Outcome = domain.AttemptRejected
		if attemptNumber >= rules.AttemptsAllowed {
			next.Status = domain.NegotiationExhausted
		} else {
			next.Status = domain.NegotiationInProgress
		}
	}

	next.Attempts = append(next.Attempts, attempt)
	return next, attempt, nil
}

func clone(state domain.Negotiation) domain.Negotiation {
	out := state
	out.Attempts = make([]domain.NegotiationAttempt, len(state.Attempts))
	copy(out.Attempts, state.Attempts)
	return out
}
