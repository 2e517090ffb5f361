package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewComputesStableHash(t *testing.T) {
	a := New("plan text", "mock", "mock-1", "prompt one")
	b := New("plan text", "mock", "mock-1", "a different prompt")

	assert.Len(t, a.Hash, 16)
	assert.Equal(t, a.Hash, b.Hash, "hash covers content, adapter and model only")

	c := New("other text", "mock", "mock-1", "prompt one")
	assert.NotEqual(t, a.Hash, c.Hash)
}

func TestForStageCopies(t *testing.T) {
	a := New("text", "mock", "mock-1", "p")
	b := a.ForStage("research")

	assert.Equal(t, "research", b.Stage)
	assert.Empty(t, a.Stage)
	assert.Equal(t, a.Hash, b.Hash)
}

func TestLenCountsRunes(t *testing.T) {
	a := New("héllo", "mock", "m", "p")
	assert.Equal(t, 5, a.Len())
}

func TestHashText(t *testing.T) {
	assert.Len(t, HashText("prompt"), 16)
	assert.Equal(t, HashText("prompt"), HashText("prompt"))
	assert.NotEqual(t, HashText("prompt"), HashText("prompt "))
}
