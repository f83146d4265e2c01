package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/argus-deps/argus/internal/lint"
)

func TestPrintRules(t *testing.T) {
	var buf bytes.Buffer
	printRules(&buf)

	// every registered rule shows its ID, title, and description
	out := buf.String()
	for _, r := range lint.List() {
		assert.Contains(t, out, r.ID())
		assert.Contains(t, out, r.Title())
		assert.Contains(t, out, r.Description())
	}
}
