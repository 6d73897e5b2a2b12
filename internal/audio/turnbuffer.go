package audio

// TurnBuffer accumulates the audio fragments of a single turn in arrival
// order. It is owned by the control loop and never shared across goroutines.
type TurnBuffer struct {
	turn      int
	fragments []string
	completed bool
}

// NewTurnBuffer creates an empty buffer for turn.
func NewTurnBuffer(turn int) *TurnBuffer {
	return &TurnBuffer{turn: turn}
}

// Turn returns the owning turn number.
func (b *TurnBuffer) Turn() int { return b.turn }

// Append adds a fragment. Empty fragments are not stored. Fragments arriving
// after completion are rejected.
func (b *TurnBuffer) Append(fragment string) bool {
	if b.completed || fragment == "" {
		return false
	}
	b.fragments = append(b.fragments, fragment)
	return true
}

// Fragments returns the stored fragments in arrival order.
func (b *TurnBuffer) Fragments() []string {
	return b.fragments
}

// Len is the number of non-empty fragments received.
func (b *TurnBuffer) Len() int { return len(b.fragments) }

// Complete marks the buffer complete. It reports true only for the first
// call, so a final chunk followed by a stream-complete signal completes the
// buffer exactly once.
func (b *TurnBuffer) Complete() bool {
	if b.completed {
		return false
	}
	b.completed = true
	return true
}

// Completed reports whether Complete has been called.
func (b *TurnBuffer) Completed() bool { return b.completed }

// Reset discards all fragments and the completion mark.
func (b *TurnBuffer) Reset() {
	b.fragments = nil
	b.completed = false
}
