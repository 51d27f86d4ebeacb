package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
}

func TestTimeCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	token := TimeCursor("42", at)

	id, parsed, err := ParseTimeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.True(t, at.Equal(parsed))
}

func TestParseTimeCursorRejectsGarbage(t *testing.T) {
	_, _, err := ParseTimeCursor("not-a-cursor!")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestBuildCursorPageInfo(t *testing.T) {
	a, b, c := 1, 2, 3
	items := []*int{&a, &b, &c}
	extract := func(v *int) string { return string(rune('0' + *v)) }

	info := BuildCursorPageInfo(items, 2, extract)
	assert.True(t, info.HasMore)
	assert.Equal(t, "2", info.NextPageToken)

	info = BuildCursorPageInfo(items, 3, extract)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
