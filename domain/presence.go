package domain

import "time"

// Transition is emitted when a user goes from zero to one live connection or back.
type Transition struct {
	UserID string
	Online bool
	At     time.Time
}
