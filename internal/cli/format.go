package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatJobStatus renders a one-line job summary.
func FormatJobStatus(s *brightcove.JobStatus) string {
	if s == nil {
		return "no status"
	}
	line := fmt.Sprintf("job %s: %s", s.ID, s.State)
	if s.TotalTimeInSeconds > 0 {
		line += " (" + FormatDurationShort(time.Duration(s.TotalTimeInSeconds)*time.Second) + ")"
	}
	if s.ErrorMessage != "" {
		line += ": " + s.ErrorMessage
		if s.ErrorCode != "" {
			line += " [" + s.ErrorCode + "]"
		}
	}
	return line
}

// PrintJSON writes v as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
