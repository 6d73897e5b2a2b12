package ui

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 30, 15, 0, time.UTC)
}

func TestTerminalStatusLines(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, WithTerminalClock(fixedClock))

	term.SetStatus(StatusReady)
	term.SetStatus(StatusReady)
	term.SetStatus(StatusPlaying)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "12:30:15")
	assert.Contains(t, lines[0], "Turn Detection + LLM Ready")
	assert.Contains(t, lines[1], "Playing Audio...")
	assert.Equal(t, StatusPlaying, term.Status())
}

func TestTerminalTranscripts(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, WithTerminalClock(fixedClock))

	term.PartialTranscript("hel")
	term.FinalTranscript("hello", 3)
	term.AddExchange(3, "hello", "Hi there")
	term.SystemMessage("Session started - speak naturally!")

	s := out.String()
	assert.Contains(t, s, "… hel")
	assert.Contains(t, s, "You [turn 3]: hello")
	assert.Contains(t, s, "You: hello")
	assert.Contains(t, s, "AI: Hi there")
	assert.Contains(t, s, "Session started - speak naturally!")
}

func TestTerminalOpenURL(t *testing.T) {
	term := NewTerminal(io.Discard)
	assert.Error(t, term.OpenURL("https://example.com"))

	var opened []string
	term = NewTerminal(io.Discard, WithOpener(func(url string) error {
		opened = append(opened, url)
		return nil
	}))
	require.NoError(t, term.OpenURL("https://example.com"))
	assert.Equal(t, []string{"https://example.com"}, opened)
}

func TestTerminalPromptKeysHint(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out)
	term.PromptKeys()
	assert.Contains(t, out.String(), "API Keys Required")
}

func TestAskKeys(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("a\nb\nc\nt\nw\n"))
	var out bytes.Buffer

	creds, err := AskKeys(in, &out, keystore.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, keystore.Credentials{AssemblyAI: "a", Gemini: "b", Murf: "c", Tavily: "t", OpenWeather: "w"}, creds)
	assert.Contains(t, out.String(), "AssemblyAI API key")
}

func TestAskKeysEndOfInput(t *testing.T) {
	var out bytes.Buffer
	current := keystore.Credentials{Tavily: "t"}

	creds, err := AskKeys(bufio.NewReader(strings.NewReader("")), &out, current)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, current, creds)

	creds, err = AskKeys(bufio.NewReader(strings.NewReader("a\nb\n")), io.Discard, current)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF))
	assert.Contains(t, err.Error(), "Murf")
	assert.Equal(t, current, creds)
}

func TestAskKeysRequiresMandatoryKeys(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("\na\nb\nc\n\n\n"))
	var out bytes.Buffer

	creds, err := AskKeys(in, &out, keystore.Credentials{OpenWeather: "w"})
	require.NoError(t, err)
	assert.Equal(t, keystore.Credentials{AssemblyAI: "a", Gemini: "b", Murf: "c", OpenWeather: "w"}, creds)
	assert.Contains(t, out.String(), "AssemblyAI key is required.")
}

func TestAskKeysKeepsCurrentValues(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("\n\nnew-m\n\n\n"))
	current := keystore.Credentials{AssemblyAI: "a", Gemini: "b", Murf: "c"}

	creds, err := AskKeys(in, io.Discard, current)
	require.NoError(t, err)
	assert.Equal(t, keystore.Credentials{AssemblyAI: "a", Gemini: "b", Murf: "new-m"}, creds)
}
