package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := EncodeCursor("pending", 42)
	id, err := DecodeCursor(c, "pending")
	require.NoError(t, err)
	require.EqualValues(t, 42, id)
}

func TestDecodeCursorRejects(t *testing.T) {
	_, err := DecodeCursor(EncodeCursor("pending", 42), "accepted")
	require.ErrorIs(t, err, ErrCursorMismatch)

	_, err = DecodeCursor("%%%", "")
	require.Error(t, err)

	_, err = DecodeCursor(EncodeCursor("", 0), "")
	require.Error(t, err)
}
