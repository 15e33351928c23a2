package progress

import (
	"fmt"
	"io"

	"github.com/ah-its-andy/img2webp/internal/worker"
	"github.com/pterm/pterm"
)

// PrintSummary writes the end-of-run report: counts first, then every
// failure and warning in the order they happened.
func PrintSummary(w io.Writer, s worker.RunSummary) {
	info := pterm.Info.WithWriter(w)
	success := pterm.Success.WithWriter(w)
	warning := pterm.Warning.WithWriter(w)
	failure := pterm.Error.WithWriter(w)

	if s.Interrupted {
		warning.Println("Run interrupted before all files were processed")
	}

	info.Printf("Found %d image(s), processed %d\n", s.TotalFound, s.Processed)
	if s.Converted > 0 {
		success.Printf("Converted %d, deleted %d original(s), saved %s\n",
			s.Converted, s.Deleted, FormatBytes(s.SpaceSaved()))
	}

	if s.Failed == 0 {
		success.Println("No failures")
	} else {
		failure.Printf("%d failure(s):\n", s.Failed)
		for _, f := range s.Failures {
			pterm.Fprintln(w, "  - "+f)
		}
	}

	for _, msg := range s.Warnings {
		warning.Println(msg)
	}
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	if n < unit {
		return fmt.Sprintf("%s%d B", sign, n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%s%.1f %ciB", sign, float64(n)/float64(div), "KMGTPE"[exp])
}
