package core

import (
	"fmt"
	"strings"
)

type NegotiationState int

const (
	NegotiationStateNone       NegotiationState = iota // NONE
	NegotiationStateRequested                          // dspace:REQUESTED
	NegotiationStateOffered                            // dspace:OFFERED
	NegotiationStateAgreed                             // dspace:AGREED
	NegotiationStateVerified                           // dspace:VERIFIED
	NegotiationStateFinalized                          // dspace:FINALIZED
	NegotiationStateTerminated                         // dspace:TERMINATED
)

const negotiationStatePrefix = "dspace:"

var negotiationStateNames = map[NegotiationState]string{
	NegotiationStateNone:       "NONE",
	NegotiationStateRequested:  "REQUESTED",
	NegotiationStateOffered:    "OFFERED",
	NegotiationStateAgreed:     "AGREED",
	NegotiationStateVerified:   "VERIFIED",
	NegotiationStateFinalized:  "FINALIZED",
	NegotiationStateTerminated: "TERMINATED",
}

func (s NegotiationState) String() string {
	name, ok := negotiationStateNames[s]
	if !ok {
		return fmt.Sprintf("NegotiationState(%d)", int(s))
	}
	if s == NegotiationStateNone {
		return name
	}
	return negotiationStatePrefix + name
}

func (s NegotiationState) Terminal() bool {
	return s == NegotiationStateFinalized || s == NegotiationStateTerminated
}

// ParseNegotiationState accepts both the prefixed protocol form
// ("dspace:AGREED") and the bare state name.
func ParseNegotiationState(raw string) (NegotiationState, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	name = strings.TrimPrefix(name, strings.ToUpper(negotiationStatePrefix))
	if name == "" {
		return NegotiationStateNone, nil
	}
	for state, candidate := range negotiationStateNames {
		if candidate == name {
			return state, nil
		}
	}
	return NegotiationStateNone, fmt.Errorf("%w: %q", ErrUnknownNegotiationState, raw)
}

// ValidateNegotiationTransition enforces the forward-only negotiation graph.
// TERMINATED is reachable from every non-terminal state.
func ValidateNegotiationTransition(current, next NegotiationState) error {
	if next == NegotiationStateTerminated && !current.Terminal() {
		return nil
	}
	if !negotiationTransitionAllowed(current, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidNegotiationStateTransition, current, next)
	}
	return nil
}

func negotiationTransitionAllowed(current, next NegotiationState) bool {
	allowed := map[NegotiationState]map[NegotiationState]struct{}{
		NegotiationStateNone:      {NegotiationStateRequested: {}},
		NegotiationStateRequested: {NegotiationStateOffered: {}},
		NegotiationStateOffered:   {NegotiationStateAgreed: {}},
		NegotiationStateAgreed:    {NegotiationStateVerified: {}},
		NegotiationStateVerified:  {NegotiationStateFinalized: {}},
	}
	_, ok := allowed[current][next]
	return ok
}
