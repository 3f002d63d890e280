package queue

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxMessageIDLength leaves room for the extension within the common
// 255-byte file name limit.
const maxMessageIDLength = 248

// validateQueueName checks that name can be used as a single directory name.
func validateQueueName(name string) error {
	if strings.TrimSpace(name) == "" {
		return configError("queue name", "is required", nil)
	}
	if !isPlainFileName(name) {
		return configError("queue name", fmt.Sprintf("%q must be a single path element", name), nil)
	}
	if name == JournalDirName {
		return configError("queue name", fmt.Sprintf("%q is reserved", name), nil)
	}
	return nil
}

// validateMessageID checks that id is usable as the base of a message file name.
func validateMessageID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidMessageID)
	}
	if len(id) > maxMessageIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidMessageID, maxMessageIDLength)
	}
	if !isPlainFileName(id) {
		return fmt.Errorf("%w: %q is not a plain file name", ErrInvalidMessageID, id)
	}
	return nil
}

// validateToken checks that token has the shape of a name returned by GetMessage.
func validateToken(token string) error {
	if !strings.HasSuffix(token, MessageExtension) {
		return fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	if validateMessageID(messageIDFromToken(token)) != nil {
		return fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	return nil
}

func isPlainFileName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return filepath.Base(name) == name
}
