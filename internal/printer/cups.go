//go:build !windows && !js && !wasip1

package printer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"cash-kiosk/internal/status"
)

// CUPSSink pipes the receipt to lp. An empty Printer uses the system default
// destination.
type CUPSSink struct {
	Printer string
	LPPath  string
}

func platformSink(printerName string) Sink {
	return &CUPSSink{Printer: printerName}
}

func (s *CUPSSink) Print(ctx context.Context, r Receipt) error {
	lp := s.LPPath
	if lp == "" {
		path, err := exec.LookPath("lp")
		if err != nil {
			return &status.PrintError{Op: "printer.CUPS", Err: fmt.Errorf("%w: %v", status.ErrNoPrinter, err)}
		}
		lp = path
	}

	doc, err := Render(r)
	if err != nil {
		return &status.PrintError{Op: "printer.CUPS", Err: err}
	}

	args := []string{"-t", "receipt-" + r.Ref, "-o", "document-format=text/html"}
	if s.Printer != "" {
		args = append(args, "-d", s.Printer)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, lp, args...)
	cmd.Stdin = bytes.NewReader(doc)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return &status.PrintError{Op: "printer.CUPS", Err: fmt.Errorf("%w: %s", status.ErrNoPrinter, msg)}
	}
	return nil
}
