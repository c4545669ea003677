package queue

import "fmt"

// TierLimitExceeded mirrors submit()'s tier_limit(tier) precondition:
// no more than Limit jobs may sit in {QUEUED,RUNNING} for one user.
type TierLimitExceeded struct {
	Limit int
}

func (e *TierLimitExceeded) Error() string {
	return fmt.Sprintf("queue: tier limit exceeded: no more than %d jobs may be queued or running", e.Limit)
}

// InactiveUserError mirrors submit()'s "user is active" precondition.
type InactiveUserError struct {
	UserID string
}

func (e *InactiveUserError) Error() string {
	return fmt.Sprintf("queue: user %s is not active", e.UserID)
}
