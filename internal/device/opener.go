package device

import (
	"net/url"
	"os/exec"
	"runtime"

	"github.com/pkg/errors"
)

// OpenURL opens u with the platform's default handler. Only http and https
// URLs are accepted.
func OpenURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return errors.Wrapf(err, "parse %q", u)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.Errorf("refusing to open %q: unsupported scheme", u)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", u)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	default:
		return errors.Errorf("cannot open URLs on %s", runtime.GOOS)
	}
	return errors.Wrap(cmd.Start(), "start URL opener")
}
