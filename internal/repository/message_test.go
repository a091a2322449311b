package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	cursor := encodeCursor(at, "msg-42")

	gotAt, gotID, err := decodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, gotAt.Equal(at), "timestamp survives with nanosecond precision")
	assert.Equal(t, "msg-42", gotID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, _, err := decodeCursor("not base64!!")
	assert.Error(t, err)

	_, _, err = decodeCursor("aGVsbG8=") // valid base64, no separator
	assert.Error(t, err)

	_, _, err = decodeCursor("bm90YW51bWJlcnxpZA==") // "notanumber|id"
	assert.Error(t, err)
}
