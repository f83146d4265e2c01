package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageTokenRoundTrip(t *testing.T) {
	tok := encodePageToken("packages:tri*", 50, 100, 50)
	require.NotEmpty(t, tok)

	offset, err := decodePageToken(tok, "packages:tri*")
	require.NoError(t, err)
	assert.Equal(t, 150, offset)
}

func TestPageTokenEndOfResults(t *testing.T) {
	// a short page means there is no next page
	assert.Empty(t, encodePageToken("projects:", 10, 0, 50))
}

func TestPageTokenUnpagedQuery(t *testing.T) {
	// a query with no page size returns every row at once, so the token must
	// be empty; a non-empty token here would never advance and callers looping
	// until the token drains would spin forever
	assert.Empty(t, encodePageToken("projects:", 5, 0, 0))

	// the empty follow-up page must not produce a token either
	assert.Empty(t, encodePageToken("projects:", 0, 5, 0))
}

func TestPageTokenKeyMismatch(t *testing.T) {
	tok := encodePageToken("declarations:trimesh", 50, 0, 50)
	_, err := decodePageToken(tok, "declarations:opencv-python")
	assert.Error(t, err)

	_, err = decodePageToken("not base64!", "declarations:trimesh")
	assert.Error(t, err)
}
