package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/agent"
	"github.com/raihanakbr/voice-agent-client/internal/device"
	"github.com/raihanakbr/voice-agent-client/internal/keystore"
	"github.com/raihanakbr/voice-agent-client/internal/ui"
	"github.com/raihanakbr/voice-agent-client/internal/websocket"
	"github.com/spf13/cobra"
)

const help = `Commands:
  r  start or stop recording
  s  enter API keys
  t  play a test tone
  i  inspect session and audio state
  q  quit`

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start an interactive voice session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, opts)
		},
	}
}

func runSession(cmd *cobra.Command, opts *options) error {
	endpoint, err := websocket.EndpointURL(opts.server)
	if err != nil {
		return err
	}

	logger := opts.logger
	store := opts.store()
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	term := ui.NewTerminal(out, ui.WithOpener(device.OpenURL))
	spk := device.NewSpeaker(logger.With().Str("component", "speaker").Logger())
	defer spk.Stop()

	a := agent.New(endpoint, store, term, agent.Devices{
		Decoder:  device.WAVDecoder{},
		Player:   spk,
		Capturer: device.NewPortAudioCapturer(logger.With().Str("component", "microphone").Logger()),
		Tone:     spk,
	}, agent.WithLogger(logger))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	logger.Info().Str("endpoint", endpoint).Msg("Starting voice session")
	fmt.Fprintln(out, help)
	if err := a.Connect(); err != nil && !errors.Is(err, keystore.ErrCredentialsMissing) {
		logger.Warn().Err(err).Msg("Initial connect failed")
	}

	go func() {
		defer stop()
		commandLoop(a, store, in, out)
	}()

	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// commandLoop reads single-letter commands until q or end of input.
func commandLoop(a *agent.Agent, store *keystore.FileStore, in *bufio.Reader, out io.Writer) {
	for {
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return
		}

		switch strings.TrimSpace(line) {
		case "":
		case "r":
			// Failures are reported on the status line.
			_ = a.ToggleCapture()
		case "s":
			current, err := store.LoadFile()
			if err != nil {
				fmt.Fprintf(out, "Could not read key store: %v\n", err)
				continue
			}
			creds, err := ui.AskKeys(in, out, current)
			if err != nil {
				fmt.Fprintf(out, "Keys not changed: %v\n", err)
				continue
			}
			if err := a.Reconfigure(creds); err != nil {
				fmt.Fprintf(out, "Reconnect failed: %v\n", err)
			}
		case "t":
			if err := a.TestTone(); err != nil {
				fmt.Fprintf(out, "Test tone failed: %v\n", err)
			}
		case "i":
			snap, err := a.Inspect()
			if err != nil {
				return
			}
			data, _ := json.MarshalIndent(snap, "", "  ")
			fmt.Fprintln(out, string(data))
		case "q":
			return
		default:
			fmt.Fprintln(out, help)
		}
	}
}
