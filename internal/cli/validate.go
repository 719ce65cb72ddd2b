package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/dynamic-ingest/internal/ingesterr"
)

// ResolveFile checks that path exists and is a regular file, then returns
// the absolute path.
func ResolveFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// Hint returns a user-facing explanation for err based on its kind.
func Hint(err error) string {
	switch ingesterr.KindOf(err) {
	case ingesterr.KindConfiguration:
		return "Missing or invalid settings. Check the config file or BRIGHTCOVE_* environment variables"
	case ingesterr.KindValidation:
		return "The request document is invalid"
	case ingesterr.KindAuthentication:
		return "Could not obtain an access token. Check the client id and secret"
	case ingesterr.KindTransient:
		return "The service timed out. Enable retries or try again later"
	case ingesterr.KindAPI:
		return "The service rejected the request"
	case ingesterr.KindTransport:
		return "Network error. Please check your internet connection"
	case ingesterr.KindUpload:
		return "A file upload failed"
	default:
		return "Ingest failed"
	}
}

// Fatal logs err with its hint and exits.
func Fatal(err error) {
	evt := log.Fatal().Err(err).Str("kind", ingesterr.KindOf(err).String())
	if code := ingesterr.CodeOf(err); code != 0 {
		evt = evt.Int("code", code)
	}
	evt.Msg(Hint(err))
}
