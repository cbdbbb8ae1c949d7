package scanner

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("folder not found")

// NotFoundError reports a folder that does not exist, is not a directory, or
// holds no candidate file.
type NotFoundError struct {
	Folder string
	Reason string
	Err    error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scan %s: %s: %v", e.Folder, e.Reason, e.Err)
	}
	return fmt.Sprintf("scan %s: %s", e.Folder, e.Reason)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

const (
	reasonMissing = "folder does not exist"
	reasonNotDir  = "not a directory"
	reasonEmpty   = "folder contains no files"
)
