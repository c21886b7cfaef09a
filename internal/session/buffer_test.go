package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ava/internal/core"
)

func TestRingBuffer_DropsOldestWhenFull(t *testing.T) {
	b := newRingBuffer(2)
	b.push(core.TrackEvent{ID: "1"})
	b.push(core.TrackEvent{ID: "2"})
	b.push(core.TrackEvent{ID: "3"})

	snap := b.snapshot(10)
	assert.Len(t, snap, 2)
	assert.Equal(t, "2", snap[0].ID)
	assert.Equal(t, "3", snap[1].ID)
}

func TestRingBuffer_SnapshotCapsAtMaxContextEvents(t *testing.T) {
	b := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		b.push(core.TrackEvent{ID: string(rune('a' + i))})
	}
	snap := b.snapshot(3)
	assert.Len(t, snap, 3)
	assert.Equal(t, "c", snap[0].ID)
}
