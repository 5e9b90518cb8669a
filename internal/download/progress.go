package download

import "dashgrab/internal/fetch"

// Phase identifies what a progress event refers to.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseSegment  Phase = "segment"
	PhaseTransfer Phase = "transfer"
	PhaseRetry    Phase = "retry"
	PhaseDone     Phase = "done"
)

// Event is one progress update. Fraction is in [0, 1] unless Indeterminate
// is set, in which case only Bytes is meaningful.
type Event struct {
	Phase         Phase
	Name          string
	Fraction      float64
	Indeterminate bool
	Bytes         int64
	// Attempt and MaxAttempts are set for PhaseRetry.
	Attempt     int
	MaxAttempts int
	Err         error
}

// Reporter consumes progress events. A nil Reporter discards them.
type Reporter func(Event)

func (r Reporter) report(e Event) {
	if r != nil {
		r(e)
	}
}

// retries turns failed fetch attempts into PhaseRetry events.
func (r Reporter) retries(name string) fetch.Observer {
	if r == nil {
		return nil
	}
	return func(a fetch.Attempt) {
		r(Event{Phase: PhaseRetry, Name: name, Attempt: a.Number, MaxAttempts: a.Max, Err: a.Err})
	}
}
