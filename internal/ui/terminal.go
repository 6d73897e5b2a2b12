package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

var palette = map[Color]lipgloss.Color{
	Green:  lipgloss.Color("#04B575"),
	Blue:   lipgloss.Color("#3C8DFF"),
	Red:    lipgloss.Color("#FF5F56"),
	Orange: lipgloss.Color("#FFA500"),
	Purple: lipgloss.Color("#A66CFF"),
	Gray:   lipgloss.Color("#808080"),
}

var (
	timeStyle    = lipgloss.NewStyle().Foreground(palette[Gray])
	partialStyle = lipgloss.NewStyle().Foreground(palette[Gray]).Italic(true)
	userStyle    = lipgloss.NewStyle().Bold(true)
	aiStyle      = lipgloss.NewStyle().Foreground(palette[Purple]).Bold(true)
	historyStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette[Gray]).
			Padding(0, 1)
)

// badge renders a status in its colour.
func badge(s Status) string {
	c, ok := palette[s.Color]
	if !ok {
		c = palette[Gray]
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c).Render("● " + s.Text)
}

// Terminal is a line-oriented Surface for an interactive terminal.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	now     func() time.Time
	open    func(url string) error
	status  Status
	partial bool
}

var _ Surface = (*Terminal)(nil)

type TerminalOption func(*Terminal)

// WithOpener sets how open_url requests are carried out.
func WithOpener(open func(url string) error) TerminalOption {
	return func(t *Terminal) { t.open = open }
}

func WithTerminalClock(now func() time.Time) TerminalOption {
	return func(t *Terminal) { t.now = now }
}

func NewTerminal(out io.Writer, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		out: out,
		now: time.Now,
		open: func(string) error {
			return errors.New("no URL opener configured")
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Status returns the last status shown.
func (t *Terminal) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Terminal) SetStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == t.status {
		return
	}
	t.status = s
	t.line(badge(s))
}

func (t *Terminal) SystemMessage(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.line(msg)
}

func (t *Terminal) PartialTranscript(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "\r\033[K%s", partialStyle.Render("… "+text))
	t.partial = true
}

func (t *Terminal) FinalTranscript(text string, turn int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.line(fmt.Sprintf("%s %s", userStyle.Render(fmt.Sprintf("You [turn %d]:", turn)), text))
}

func (t *Terminal) AddExchange(turn int, user, ai string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	body := strings.Join([]string{
		userStyle.Render(fmt.Sprintf("Turn %d", turn)),
		"You: " + user,
		aiStyle.Render("AI: ") + ai,
	}, "\n")
	t.endPartial()
	fmt.Fprintln(t.out, historyStyle.Render(body))
}

func (t *Terminal) ClearCurrentTurn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endPartial()
}

func (t *Terminal) PromptKeys() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.line(badge(StatusKeysRequired) + "  press s then Enter to enter your API keys")
}

func (t *Terminal) OpenURL(url string) error {
	return t.open(url)
}

// line writes one timestamped line, closing any open partial transcript.
func (t *Terminal) line(text string) {
	t.endPartial()
	fmt.Fprintf(t.out, "%s %s\n", timeStyle.Render(t.now().Format("15:04:05")), text)
}

func (t *Terminal) endPartial() {
	if t.partial {
		fmt.Fprint(t.out, "\r\033[K")
		t.partial = false
	}
}
