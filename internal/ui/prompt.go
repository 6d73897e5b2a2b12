package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/raihanakbr/voice-agent-client/internal/keystore"
	input "github.com/tcnksm/go-input"
)

type keyField struct {
	label    string
	required bool
	value    *string
}

// AskKeys runs the key-entry flow on r and w. Pressing Enter keeps the
// current value; a required key with no current value is asked again. It
// fails with io.EOF when input ends before every key is answered. r should be
// shared with any other line reader on the same input so no buffered bytes
// are lost.
func AskKeys(r io.Reader, w io.Writer, current keystore.Credentials) (keystore.Credentials, error) {
	br := bufio.NewReader(r)
	ui := &input.UI{Writer: w, Reader: br}
	next := current

	fields := []keyField{
		{"AssemblyAI", true, &next.AssemblyAI},
		{"Gemini", true, &next.Gemini},
		{"Murf", true, &next.Murf},
		{"Tavily", false, &next.Tavily},
		{"OpenWeather", false, &next.OpenWeather},
	}

	fmt.Fprintln(w, "Enter your API keys. Press Enter to keep the current value.")
	for _, f := range fields {
		query := fmt.Sprintf("%s API key [%s]", f.label, keystore.Mask(*f.value))
		if !f.required {
			query += " (optional)"
		}

		for {
			// go-input reports end of input as an empty answer.
			if _, err := br.Peek(1); err != nil {
				return current, errors.Wrapf(err, "read %s key", f.label)
			}
			answer, err := ui.Ask(query, &input.Options{Default: *f.value, HideDefault: true})
			if err != nil {
				return current, errors.Wrapf(err, "read %s key", f.label)
			}
			answer = strings.TrimSpace(answer)
			if answer == "" && f.required {
				fmt.Fprintf(w, "%s key is required.\n", f.label)
				continue
			}
			*f.value = answer
			break
		}
	}

	if err := next.Validate(); err != nil {
		return current, err
	}
	return next, nil
}
