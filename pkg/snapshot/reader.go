package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xrplstats/richlist/pkg/ledger"
)

type document struct {
	Stats    *ledger.Header           `json:"stats"`
	Balances *[]ledger.AccountBalance `json:"balances"`
}

// ReadFile loads a finalized snapshot document from path.
func ReadFile(path string) (*ledger.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	defer f.Close()

	snap, err := decode(bufio.NewReaderSize(f, bufferSize))
	if err != nil {
		var serr *StorageError
		if errors.As(err, &serr) {
			serr.Path = path
			return nil, serr
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	return snap, nil
}

// Decode reads one snapshot document from r.
func Decode(r io.Reader) (*ledger.Snapshot, error) {
	snap, err := decode(r)
	if err != nil {
		var serr *StorageError
		if errors.As(err, &serr) {
			return nil, err
		}
		return nil, &ParseError{Path: "<stream>", Err: err}
	}
	return snap, nil
}

func decode(r io.Reader) (*ledger.Snapshot, error) {
	dec := json.NewDecoder(r)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if isReadErr(err) {
			return nil, &StorageError{Op: "read", Err: err}
		}
		return nil, err
	}
	if doc.Stats == nil {
		return nil, fmt.Errorf("missing stats")
	}
	if doc.Stats.Hash == "" {
		return nil, fmt.Errorf("stats has no ledger hash")
	}
	if doc.Balances == nil {
		return nil, fmt.Errorf("missing balances")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after snapshot document")
	}

	return &ledger.Snapshot{Header: *doc.Stats, Balances: *doc.Balances}, nil
}

// isReadErr tells I/O failures of the underlying reader apart from malformed JSON.
func isReadErr(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return false
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// Truncated document.
		return false
	}
	var pathErr *os.PathError
	return errors.As(err, &pathErr)
}
