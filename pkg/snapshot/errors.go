package snapshot

import "fmt"

// StorageError reports a failed read or write of a snapshot or statistics file.
type StorageError struct {
	Op   string // "create", "write", "sync", "rename", "read"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ParseError reports a snapshot file whose content is not a well-formed snapshot document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse snapshot %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
