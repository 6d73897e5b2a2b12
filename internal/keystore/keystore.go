// Package keystore persists the API credentials the voice server needs.
package keystore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables that supply keys the file leaves empty.
const (
	AssemblyAIEnvVar  = "ASSEMBLYAI_API_KEY"
	GeminiEnvVar      = "GEMINI_API_KEY"
	MurfEnvVar        = "MURF_API_KEY"
	TavilyEnvVar      = "TAVILY_API_KEY"
	OpenWeatherEnvVar = "OPENWEATHER_API_KEY"
)

// ErrCredentialsMissing indicates a mandatory key is absent.
var ErrCredentialsMissing = errors.New("keystore: required API keys missing")

// Credentials is the key set sent to the server in the configure envelope.
// AssemblyAI, Gemini and Murf are mandatory.
type Credentials struct {
	AssemblyAI  string `json:"assemblyai" yaml:"assemblyai"`
	Gemini      string `json:"gemini" yaml:"gemini"`
	Murf        string `json:"murf" yaml:"murf"`
	Tavily      string `json:"tavily" yaml:"tavily,omitempty"`
	OpenWeather string `json:"openweather" yaml:"openweather,omitempty"`
}

// Missing lists the mandatory keys that are empty.
func (c Credentials) Missing() []string {
	var missing []string
	if strings.TrimSpace(c.AssemblyAI) == "" {
		missing = append(missing, "assemblyai")
	}
	if strings.TrimSpace(c.Gemini) == "" {
		missing = append(missing, "gemini")
	}
	if strings.TrimSpace(c.Murf) == "" {
		missing = append(missing, "murf")
	}
	return missing
}

// Validate fails with ErrCredentialsMissing unless every mandatory key is set.
func (c Credentials) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return errors.Wrapf(ErrCredentialsMissing, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Trimmed returns c with surrounding whitespace removed from every key.
func (c Credentials) Trimmed() Credentials {
	return Credentials{
		AssemblyAI:  strings.TrimSpace(c.AssemblyAI),
		Gemini:      strings.TrimSpace(c.Gemini),
		Murf:        strings.TrimSpace(c.Murf),
		Tavily:      strings.TrimSpace(c.Tavily),
		OpenWeather: strings.TrimSpace(c.OpenWeather),
	}
}

// Overlay returns c with every non-empty key of o replacing its counterpart.
func (c Credentials) Overlay(o Credentials) Credentials {
	pick := func(base, over string) string {
		if over != "" {
			return over
		}
		return base
	}
	return Credentials{
		AssemblyAI:  pick(c.AssemblyAI, o.AssemblyAI),
		Gemini:      pick(c.Gemini, o.Gemini),
		Murf:        pick(c.Murf, o.Murf),
		Tavily:      pick(c.Tavily, o.Tavily),
		OpenWeather: pick(c.OpenWeather, o.OpenWeather),
	}
}

// FromEnv reads credentials from the environment.
func FromEnv() Credentials {
	return Credentials{
		AssemblyAI:  os.Getenv(AssemblyAIEnvVar),
		Gemini:      os.Getenv(GeminiEnvVar),
		Murf:        os.Getenv(MurfEnvVar),
		Tavily:      os.Getenv(TavilyEnvVar),
		OpenWeather: os.Getenv(OpenWeatherEnvVar),
	}.Trimmed()
}

// Store loads and saves credentials.
type Store interface {
	Load() (Credentials, error)
	Save(c Credentials) error
}

// FileStore keeps credentials in a YAML file readable only by the owner.
// Keys saved in the file take precedence over the environment on Load, so
// keys entered by the user are never shadowed by stale env values.
type FileStore struct {
	Path string
	// UseEnv fills keys the file leaves empty from the environment.
	UseEnv bool
}

// DefaultPath is $XDG_CONFIG_HOME/voiceclient/keys.yaml or its platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve config dir")
	}
	return filepath.Join(dir, "voiceclient", "keys.yaml"), nil
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, UseEnv: true}
}

// Load returns the stored credentials with empty keys filled from the
// environment when UseEnv is set. A missing file yields an empty set.
func (s *FileStore) Load() (Credentials, error) {
	c, err := s.LoadFile()
	if err != nil {
		return Credentials{}, err
	}
	if s.UseEnv {
		c = FromEnv().Overlay(c)
	}
	return c, nil
}

// LoadFile returns only what the file holds, ignoring the environment.
func (s *FileStore) LoadFile() (Credentials, error) {
	var c Credentials

	data, err := os.ReadFile(s.Path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Credentials{}, errors.Wrapf(err, "parse %s", s.Path)
		}
	case os.IsNotExist(err):
	default:
		return Credentials{}, errors.Wrapf(err, "read %s", s.Path)
	}

	return c.Trimmed(), nil
}

// Save validates and writes c. Incomplete sets are refused.
func (s *FileStore) Save(c Credentials) error {
	c = c.Trimmed()
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode credentials")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return errors.Wrap(err, "create key store dir")
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write %s", s.Path)
	}
	return nil
}

// Mask hides all but the last four characters of a key.
func Mask(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 6 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
