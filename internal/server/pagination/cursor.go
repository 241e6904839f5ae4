package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	cursorVersion   = "v1"
	cursorSeparator = ","
)

// ErrCursorMismatch is returned when a cursor is replayed with a different filter.
var ErrCursorMismatch = errors.New("cursor does not match the requested filter")

// EncodeCursor creates an opaque cursor pointing after the row with lastID
// in a listing filtered by filter.
func EncodeCursor(filter string, lastID int64) string {
	key := strings.Join([]string{cursorVersion, filter, strconv.FormatInt(lastID, 10)}, cursorSeparator)
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor parses the opaque cursor string back into the last seen id.
// The cursor must have been issued for the same filter.
func DecodeCursor(encodedCursor, filter string) (int64, error) {
	decodedBytes, err := base64.RawURLEncoding.DecodeString(encodedCursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.Split(string(decodedBytes), cursorSeparator)
	if len(parts) != 3 || parts[0] != cursorVersion {
		return 0, fmt.Errorf("invalid cursor format")
	}
	if parts[1] != filter {
		return 0, ErrCursorMismatch
	}

	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id in cursor")
	}
	return id, nil
}
