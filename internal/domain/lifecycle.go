package domain

// transition is a from/to pair in the ad lifecycle
type transition struct {
	From AdStatus
	To   AdStatus
}

// adTransitions lists every permitted status change. Rejecting an already
// rejected request is an idempotent overwrite, not an error.
var adTransitions = map[transition]bool{
	{AdStatusPending, AdStatusActive}:    true,
	{AdStatusPending, AdStatusRejected}:  true,
	{AdStatusPending, AdStatusCancelled}: true,
	{AdStatusActive, AdStatusCancelled}:  true,
	{AdStatusRejected, AdStatusRejected}: true,
}

// CanTransition checks whether an ad request may move from one status to another
func CanTransition(from, to AdStatus) bool {
	return adTransitions[transition{from, to}]
}

// Transition validates a status change for the given request id
func Transition(requestID string, from, to AdStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{RequestID: requestID, From: from, To: to}
	}
	return nil
}

// IsLive reports whether the status counts toward the one pending/active
// request per account convention
func (s AdStatus) IsLive() bool {
	return s == AdStatusPending || s == AdStatusActive
}
