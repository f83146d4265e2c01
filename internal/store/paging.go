package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash"
	"hash/fnv"
	"sync"
)

// pageToken is the decoded form of the opaque paging cursor returned by the
// query operations.  FilterID ties the cursor to the query that produced it
// so a token from one operation can't skew the results of another.
type pageToken struct {
	FilterID uint32
	Offset   int
}

var tokenHasherPool = sync.Pool{
	New: func() interface{} {
		return fnv.New32a()
	},
}

// encodePageToken generates a "token" that represents the current position in
// a set of results
func encodePageToken(key string, n, offset, page int) string {
	// an unpaged query returns every row at once, and a page we didn't fill is
	// the last one, so neither has a "next" page
	if page <= 0 || n < page {
		return ""
	}
	h := tokenHasherPool.Get().(hash.Hash32)
	defer func() {
		h.Reset()
		tokenHasherPool.Put(h)
	}()
	_, _ = h.Write([]byte(key))
	data, _ := json.Marshal(pageToken{
		FilterID: h.Sum32(),
		Offset:   offset + n,
	})
	return base64.StdEncoding.EncodeToString(data)
}

// decodePageToken extracts the position/offset value from the specified token.
// If key doesn't match the value that was passed to encodePageToken() then
// this function returns an error.
func decodePageToken(s, key string) (offset int, err error) {
	var data []byte
	if data, err = base64.StdEncoding.DecodeString(s); err != nil {
		return 0, fmt.Errorf("token must be a base64-encoded string: %w", err)
	}
	var tok pageToken
	if err = json.Unmarshal(data, &tok); err != nil {
		// keep the token opaque to the caller, don't return the JSON error
		return 0, fmt.Errorf("the token contents were invalid")
	}

	h := tokenHasherPool.Get().(hash.Hash32)
	defer func() {
		h.Reset()
		tokenHasherPool.Put(h)
	}()

	_, _ = h.Write([]byte(key))
	if h.Sum32() != tok.FilterID {
		return 0, fmt.Errorf("the provided token was for a different operation")
	}
	return tok.Offset, nil
}
