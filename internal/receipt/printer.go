package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// PrintError marks a failed print. It is non-fatal to the sale: the
// transaction is already confirmed upstream and the receipt can be reprinted
// from the journal.
type PrintError struct {
	TransactionID string
	Err           error
}

func (e *PrintError) Error() string {
	return fmt.Sprintf("print receipt %s: %v", e.TransactionID, e.Err)
}

func (e *PrintError) Unwrap() error { return e.Err }

// Surface is an acquired print channel. Write stages bytes, Flush commits
// them to the physical device, Close releases the channel. Close must be
// safe to call after Flush and after a failed Write.
type Surface interface {
	io.Writer
	Flush() error
	Close() error
}

// SurfaceFactory acquires a fresh surface for one receipt. Acquisition may
// fail (spool dir gone, device busy).
type SurfaceFactory func(transactionID string) (Surface, error)

// Printer drives a document through a surface. The surface is always
// released, on success and on every failure path.
type Printer struct {
	acquire SurfaceFactory
}

func NewPrinter(acquire SurfaceFactory) *Printer {
	return &Printer{acquire: acquire}
}

// Print sends the ESC/POS rendering of doc to a freshly acquired surface.
// Every error comes back as a *PrintError.
func (p *Printer) Print(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return &PrintError{TransactionID: doc.TransactionID, Err: err}
	}
	surface, err := p.acquire(doc.TransactionID)
	if err != nil {
		return &PrintError{TransactionID: doc.TransactionID, Err: err}
	}
	defer func() {
		if cerr := surface.Close(); cerr != nil {
			log.Printf("[receipt] WARN: close print surface for %s: %v", doc.TransactionID, cerr)
		}
	}()

	if _, err := surface.Write(doc.Escpos); err != nil {
		return &PrintError{TransactionID: doc.TransactionID, Err: err}
	}
	if err := surface.Flush(); err != nil {
		return &PrintError{TransactionID: doc.TransactionID, Err: err}
	}
	return nil
}

// spoolSurface writes the receipt to a temp file and commits it into the
// spool directory with an atomic rename. A print bridge watching the
// directory picks up committed files; uncommitted temp files are cleaned up
// on Close.
type spoolSurface struct {
	tmp       *os.File
	finalPath string
	committed bool
}

// SpoolFactory returns a SurfaceFactory writing receipt-<txid>.bin files
// into dir. The directory is created on first acquisition if missing.
func SpoolFactory(dir string) SurfaceFactory {
	return func(transactionID string) (Surface, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create spool dir: %w", err)
		}
		tmp, err := os.CreateTemp(dir, "receipt-*.tmp")
		if err != nil {
			return nil, fmt.Errorf("create spool file: %w", err)
		}
		return &spoolSurface{
			tmp:       tmp,
			finalPath: filepath.Join(dir, "receipt-"+transactionID+".bin"),
		}, nil
	}
}

func (s *spoolSurface) Write(p []byte) (int, error) { return s.tmp.Write(p) }

func (s *spoolSurface) Flush() error {
	if err := s.tmp.Sync(); err != nil {
		return err
	}
	if err := s.tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(s.tmp.Name(), s.finalPath); err != nil {
		return err
	}
	s.committed = true
	return nil
}

func (s *spoolSurface) Close() error {
	if s.committed {
		return nil
	}
	s.tmp.Close()
	if err := os.Remove(s.tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// pipeSurface streams the receipt into the stdin of a print command (lp,
// a raw-socket helper, a vendor tool). One process per receipt.
type pipeSurface struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	waited bool
}

// PipeFactory returns a SurfaceFactory that spawns name with args for each
// receipt and writes the ESC/POS bytes to its stdin. Flush closes stdin and
// waits for the command to exit; a non-zero exit is a print failure.
func PipeFactory(name string, args ...string) SurfaceFactory {
	return func(string) (Surface, error) {
		cmd := exec.Command(name, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("open print command stdin: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start print command: %w", err)
		}
		return &pipeSurface{cmd: cmd, stdin: stdin}, nil
	}
}

func (s *pipeSurface) Write(p []byte) (int, error) { return s.stdin.Write(p) }

func (s *pipeSurface) Flush() error {
	if err := s.stdin.Close(); err != nil {
		return err
	}
	s.waited = true
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("print command: %w", err)
	}
	return nil
}

func (s *pipeSurface) Close() error {
	if s.waited {
		return nil
	}
	s.stdin.Close()
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	return nil
}
