package main

import (
	"bufio"
	"fmt"

	"github.com/raihanakbr/voice-agent-client/internal/keystore"
	"github.com/raihanakbr/voice-agent-client/internal/ui"
	"github.com/spf13/cobra"
)

func newKeysCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the stored API keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Enter and save API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := opts.store()
			// Only file keys are offered as defaults so env secrets never
			// get written into the key store.
			current, err := store.LoadFile()
			if err != nil {
				return err
			}

			creds, err := ui.AskKeys(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), current)
			if err != nil {
				return err
			}
			if err := store.Save(creds); err != nil {
				return err
			}
			opts.logger.Info().Str("path", store.Path).Msg("Saved API keys")
			fmt.Fprintf(cmd.OutOrStdout(), "Saved API keys to %s\n", store.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored API keys, masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := opts.store()
			creds, err := store.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key store: %s\n", store.Path)
			fmt.Fprintf(out, "  assemblyai:  %s\n", keystore.Mask(creds.AssemblyAI))
			fmt.Fprintf(out, "  gemini:      %s\n", keystore.Mask(creds.Gemini))
			fmt.Fprintf(out, "  murf:        %s\n", keystore.Mask(creds.Murf))
			fmt.Fprintf(out, "  tavily:      %s\n", keystore.Mask(creds.Tavily))
			fmt.Fprintf(out, "  openweather: %s\n", keystore.Mask(creds.OpenWeather))
			if missing := creds.Missing(); len(missing) > 0 {
				fmt.Fprintf(out, "Missing required keys: %v\n", missing)
			}
			return nil
		},
	})
	return cmd
}
