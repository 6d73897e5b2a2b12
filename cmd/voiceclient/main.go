package main

import (
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/keystore"
	"github.com/raihanakbr/voice-agent-client/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type options struct {
	server   string
	keysFile string
	logLevel string
	logFile  string

	logger  zerolog.Logger
	logSink io.Closer
	envErr  error
}

func main() {
	opts := &options{}
	// Load environment variables from .env if present
	opts.envErr = godotenv.Load()

	err := newRootCmd(opts).Execute()
	if opts.logSink != nil {
		opts.logSink.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:          "voiceclient",
		Short:        "Realtime voice conversation client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.setupLogging(); err != nil {
				return err
			}
			if opts.envErr != nil {
				opts.logger.Debug().Msg("No .env file found; using system environment variables")
			}
			return nil
		},
	}

	defaultKeys, err := keystore.DefaultPath()
	if err != nil {
		defaultKeys = "keys.yaml"
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.server, "server", websocket.DefaultServerURL, "base URL of the voice agent server")
	f.StringVar(&opts.keysFile, "keys-file", defaultKeys, "path of the API key store")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	f.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(newRunCmd(opts), newKeysCmd(opts))
	return root
}

func (o *options) setupLogging() error {
	level, err := zerolog.ParseLevel(o.logLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", o.logLevel)
	}

	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	if o.logFile != "" {
		file, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}
		o.logSink = file
		w = zerolog.ConsoleWriter{Out: file, NoColor: true, TimeFormat: time.RFC3339}
	}

	o.logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	log.Logger = o.logger
	return nil
}

func (o *options) store() *keystore.FileStore {
	return keystore.NewFileStore(o.keysFile)
}
