package queue

import (
	"errors"
	"fmt"
)

// Errors returned by queue operations.
var (
	// ErrInvalidMessageID indicates an empty message id or one that is not a
	// plain file name.
	ErrInvalidMessageID = errors.New("filemq: invalid message id")

	// ErrNilReader indicates Enqueue was called without a payload reader.
	ErrNilReader = errors.New("filemq: nil payload reader")

	// ErrInvalidToken indicates an acknowledgement token that could not have
	// been issued by GetMessage.
	ErrInvalidToken = errors.New("filemq: invalid acknowledgement token")

	// ErrMessageTooLarge indicates the payload exceeded Options.MaxMessageSize.
	ErrMessageTooLarge = errors.New("filemq: message exceeds maximum size")

	// ErrInsufficientDiskSpace indicates free space fell below
	// Options.MinFreeDiskSpace.
	ErrInsufficientDiskSpace = errors.New("filemq: insufficient disk space")
)

// ConfigurationError reports an invalid queue configuration detected at
// construction time.
type ConfigurationError struct {
	// Item names the offending setting, e.g. "queue name" or "path".
	Item string

	// Reason describes what is wrong with it.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filemq: configuration: %s %s: %v", e.Item, e.Reason, e.Err)
	}
	return fmt.Sprintf("filemq: configuration: %s %s", e.Item, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(item, reason string, err error) error {
	return &ConfigurationError{Item: item, Reason: reason, Err: err}
}
