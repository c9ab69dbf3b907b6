package deploy

// State is a step of the upload state machine.
type State int

const (
	StateReceived State = iota
	StateAuthenticated
	StateAuthorized
	StateReserved
	StateUnpacked
	StateValidated
	StatePublished
	StateReconciled
	StateCleanedUp
	StateFailed
)

var stateNames = [...]string{
	StateReceived:      "received",
	StateAuthenticated: "authenticated",
	StateAuthorized:    "authorized",
	StateReserved:      "reserved",
	StateUnpacked:      "unpacked",
	StateValidated:     "validated",
	StatePublished:     "published",
	StateReconciled:    "reconciled",
	StateCleanedUp:     "cleaned_up",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
