package ui

import (
	"fmt"
	"sync"
)

// Exchange is one committed history entry.
type Exchange struct {
	Turn int
	User string
	AI   string
}

// Recorder is a Surface that keeps everything it is told. It backs tests and
// headless runs.
type Recorder struct {
	mu        sync.Mutex
	statuses  []Status
	messages  []string
	partials  []string
	finals    []string
	exchanges []Exchange
	urls      []string
	prompts   int
	clears    int
}

var _ Surface = (*Recorder)(nil)

func (r *Recorder) SetStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *Recorder) SystemMessage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *Recorder) PartialTranscript(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partials = append(r.partials, text)
}

func (r *Recorder) FinalTranscript(text string, turn int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finals = append(r.finals, fmt.Sprintf("%d:%s", turn, text))
}

func (r *Recorder) AddExchange(turn int, user, ai string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = append(r.exchanges, Exchange{Turn: turn, User: user, AI: ai})
}

func (r *Recorder) ClearCurrentTurn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *Recorder) PromptKeys() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts++
}

func (r *Recorder) OpenURL(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
	return nil
}

// Statuses returns a copy of every status reported so far.
func (r *Recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

// LastStatus returns the most recent status, or the zero Status.
func (r *Recorder) LastStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Status{}
	}
	return r.statuses[len(r.statuses)-1]
}

// HasStatus reports whether s was ever reported.
func (r *Recorder) HasStatus(s Status) bool {
	for _, got := range r.Statuses() {
		if got == s {
			return true
		}
	}
	return false
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *Recorder) Partials() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.partials...)
}

// Finals returns finalized transcripts formatted as "turn:text".
func (r *Recorder) Finals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.finals...)
}

func (r *Recorder) Exchanges() []Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Exchange(nil), r.exchanges...)
}

func (r *Recorder) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

func (r *Recorder) Prompts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompts
}

func (r *Recorder) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}
