package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xrplstats/richlist/pkg/ledger"
)

// Fixed delimiters of the snapshot document. The balances list is streamed between
// envelopeOpen and envelopeClose, one record per line.
const (
	envelopeOpen  = "{\n  \"stats\": %s,\n  \"balances\": [\n    "
	separator     = ",\n    "
	envelopeClose = "\n  ]\n}\n"
)

const bufferSize = 256 * 1024

var (
	errFinalized = errors.New("writer already finalized")
	errAborted   = errors.New("writer aborted")
)

// Result describes a finalized snapshot.
type Result struct {
	Path    string // Empty when the writer was not file-backed
	Records int
}

// Writer streams a snapshot document to storage one batch at a time.
// Memory use is bounded by the buffer and the batch being appended, not by the number of accounts.
// The output only becomes a valid document after Finalize.
type Writer struct {
	out  *bufio.Writer
	file *os.File

	path    string // Final destination
	tmpPath string // Where bytes go until Finalize

	records int
	err     error // First write error; sticky
	done    error // errFinalized or errAborted once terminal
}

// NewWriter starts a snapshot document on w by writing the header envelope.
func NewWriter(w io.Writer, header ledger.Header) (*Writer, error) {
	sw := &Writer{out: bufio.NewWriterSize(w, bufferSize)}
	if err := sw.writeHeader(header); err != nil {
		return nil, err
	}
	return sw, nil
}

// Create starts a snapshot document destined for path. Bytes go to a temporary file in the same
// directory, which Finalize renames onto path, so a truncated file is never published.
func Create(path string, header ledger.Header) (*Writer, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return nil, &StorageError{Op: "create", Path: path, Err: err}
	}

	sw := &Writer{
		out:     bufio.NewWriterSize(f, bufferSize),
		file:    f,
		path:    path,
		tmpPath: f.Name(),
	}
	if err := sw.writeHeader(header); err != nil {
		_ = sw.Abort()
		return nil, err
	}
	return sw, nil
}

func (w *Writer) writeHeader(header ledger.Header) error {
	stats, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode snapshot header: %w", err)
	}
	_, err = fmt.Fprintf(w.out, envelopeOpen, stats)
	return w.storageErr("write", err)
}

// Append writes a batch of balances. Batches may be empty.
func (w *Writer) Append(batch []ledger.AccountBalance) error {
	if w.done != nil {
		return w.done
	}
	if w.err != nil {
		return w.err
	}
	for i := range batch {
		rec, err := batch[i].MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode account %s: %w", batch[i].Account, err)
		}
		if w.records > 0 {
			if _, err := w.out.WriteString(separator); err != nil {
				return w.storageErr("write", err)
			}
		}
		if _, err := w.out.Write(rec); err != nil {
			return w.storageErr("write", err)
		}
		w.records++
	}
	return nil
}

// Records returns how many balances have been appended so far.
func (w *Writer) Records() int {
	return w.records
}

// Finalize closes the balances list and the document, flushes everything to storage and, for
// file-backed writers, publishes the file at its final path.
func (w *Writer) Finalize() (Result, error) {
	if w.done != nil {
		return Result{}, w.done
	}
	if w.err != nil {
		return Result{}, w.err
	}
	if _, err := w.out.WriteString(envelopeClose); err != nil {
		return Result{}, w.storageErr("write", err)
	}
	if err := w.out.Flush(); err != nil {
		return Result{}, w.storageErr("write", err)
	}

	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return Result{}, w.storageErr("sync", err)
		}
		if err := w.file.Close(); err != nil {
			return Result{}, w.storageErr("write", err)
		}
		w.file = nil
		if err := os.Rename(w.tmpPath, w.path); err != nil {
			return Result{}, w.storageErr("rename", err)
		}
	}

	w.done = errFinalized
	return Result{Path: w.path, Records: w.records}, nil
}

// Abort discards the document. For file-backed writers the temporary file is removed.
// Aborting a finalized writer is a no-op.
func (w *Writer) Abort() error {
	if w.done != nil {
		return nil
	}
	w.done = errAborted
	if w.file == nil {
		return nil
	}
	_ = w.file.Close()
	w.file = nil
	if err := os.Remove(w.tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Op: "remove", Path: w.tmpPath, Err: err}
	}
	return nil
}

func (w *Writer) storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	path := w.path
	if path == "" {
		path = "<stream>"
	}
	w.err = &StorageError{Op: op, Path: path, Err: err}
	return w.err
}
