package workflows

// StateMachine enforces lifecycle status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewRequestStateMachine returns the machine governing mint and exchange
// requests: a request leaves PENDING exactly once and never comes back.
func NewRequestStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"PENDING":  {"APPROVED", "REJECTED"},
			"APPROVED": {},
			"REJECTED": {},
		},
	}
}

// NewCertificateStateMachine returns the machine governing certificate
// disposition. Redemption is terminal: a redeemed certificate is frozen.
func NewCertificateStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"ACTIVE":   {"REDEEMED"},
			"REDEEMED": {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
