package printer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cash-kiosk/internal/status"
)

// Sink hands a rendered receipt to something that can put it on paper.
type Sink interface {
	Print(ctx context.Context, r Receipt) error
}

const (
	ModeSystem      = "system"
	ModeSpool       = "spool"
	ModeUnsupported = "none"
)

// NewSink picks the print surface for mode. The system mode is the
// platform's native printing, which some builds do not have.
func NewSink(mode, printerName, spoolDir string) (Sink, error) {
	switch mode {
	case "", ModeSystem:
		return platformSink(printerName), nil
	case ModeSpool:
		if spoolDir == "" {
			return nil, &status.ConfigurationError{Op: "printer.NewSink", Err: fmt.Errorf("spool mode needs a directory")}
		}
		return &SpoolSink{Dir: spoolDir}, nil
	case ModeUnsupported:
		return UnsupportedSink{}, nil
	default:
		return nil, &status.ConfigurationError{Op: "printer.NewSink", Err: fmt.Errorf("unknown print mode %q", mode)}
	}
}

// SpoolSink writes each receipt as an HTML file for another process to pick
// up.
type SpoolSink struct {
	Dir string
}

func (s *SpoolSink) Print(ctx context.Context, r Receipt) error {
	if err := ctx.Err(); err != nil {
		return &status.PrintError{Op: "printer.Spool", Err: err}
	}

	doc, err := Render(r)
	if err != nil {
		return &status.PrintError{Op: "printer.Spool", Err: err}
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return &status.PrintError{Op: "printer.Spool", Err: err}
	}

	path := filepath.Join(s.Dir, fmt.Sprintf("receipt-%s.html", r.Ref))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, doc, 0o644); err != nil {
		return &status.PrintError{Op: "printer.Spool", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &status.PrintError{Op: "printer.Spool", Err: err}
	}
	return nil
}

type UnsupportedSink struct{}

func (UnsupportedSink) Print(context.Context, Receipt) error {
	return &status.PrintError{Op: "printer.Print", Err: status.ErrPrintUnsupported}
}
