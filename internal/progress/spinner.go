package progress

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
)

// SpinnerSequence is the frame sequence shown while a run is in progress.
var SpinnerSequence = []string{"|", "/", "-", "\\"}

// Spinner is a cosmetic busy indicator. It shares no state with the run it
// decorates; Stop is the only signal it observes.
type Spinner struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	printer *pterm.SpinnerPrinter
}

// NewSpinner returns a spinner writing to w. A disabled spinner does nothing.
func NewSpinner(w io.Writer, enabled bool) *Spinner {
	return &Spinner{w: w, enabled: enabled}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start begins spinning with text. Calling Start on a running spinner is a no-op.
func (s *Spinner) Start(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.printer != nil {
		return
	}
	sp, err := pterm.DefaultSpinner.
		WithSequence(SpinnerSequence...).
		WithDelay(100 * time.Millisecond).
		WithRemoveWhenDone(true).
		WithShowTimer(false).
		WithWriter(s.w).
		Start(text)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to start spinner")
		return
	}
	s.printer = sp
}

// Stop halts the spinner. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.printer == nil {
		return
	}
	if err := s.printer.Stop(); err != nil {
		log.Debug().Err(err).Msg("Failed to stop spinner")
	}
	s.printer = nil
}

// Running reports whether the spinner is currently active.
func (s *Spinner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.printer != nil
}
