package agent

import (
	"github.com/raihanakbr/voice-agent-client/internal/audio"
	"github.com/raihanakbr/voice-agent-client/internal/turn"
)

// BufferSummary describes the live turn buffer.
type BufferSummary struct {
	Turn      int  `json:"turn"`
	Chunks    int  `json:"chunks"`
	Completed bool `json:"completed"`
}

// Snapshot is a point-in-time view of the agent for diagnostics.
type Snapshot struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
	Attempts  int    `json:"reconnect_attempts"`
	// Dropped counts malformed and unknown server envelopes.
	Dropped   int    `json:"dropped_envelopes"`

	TurnPhase string         `json:"turn_phase"`
	Turn      turn.Turn      `json:"turn"`
	Buffer    *BufferSummary `json:"buffer,omitempty"`

	Playing   bool              `json:"playing"`
	Recording bool              `json:"recording"`
	Ingest    audio.IngestStats `json:"ingest"`
	Playback  []audio.Attempt   `json:"playback"`
	History   []turn.Exchange   `json:"history"`
}

// Inspect returns the current state of the agent.
func (a *Agent) Inspect() (Snapshot, error) {
	var s Snapshot
	err := a.do(func() {
		sess := a.manager.Session()
		s = Snapshot{
			SessionID: sess.ID,
			Phase:     sess.Phase.String(),
			Attempts:  sess.Attempts,
			Dropped:   a.dropped,
			TurnPhase: a.turns.Phase().String(),
			Turn:      a.turns.Current(),
			Playing:   a.output.Playing(),
			Recording: a.ingest.Recording(),
			Ingest:    a.ingest.Stats(),
			Playback:  a.output.Attempts(),
			History:   a.turns.History(),
		}
		if buf := a.turns.Buffer(); buf != nil {
			s.Buffer = &BufferSummary{Turn: buf.Turn(), Chunks: buf.Len(), Completed: buf.Completed()}
		}
	})
	return s, err
}
