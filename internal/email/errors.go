package email

import (
	"errors"
	"fmt"
)

var (
	// ErrAttachment is matched by every AttachmentError.
	ErrAttachment = errors.New("attachment error")
	// ErrTooLarge marks files over the configured attachment size limit.
	ErrTooLarge = errors.New("attachment too large")
)

// AttachmentError reports a selected file that could not be attached.
type AttachmentError struct {
	Path string
	Err  error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attach %s: %v", e.Path, e.Err)
}

func (e *AttachmentError) Unwrap() error { return e.Err }

func (e *AttachmentError) Is(target error) bool { return target == ErrAttachment }
