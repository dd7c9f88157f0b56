package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seconds, clamped := SessionDuration(start, start.Add(90*time.Second))
	assert.Equal(t, 90.0, seconds)
	assert.False(t, clamped)

	seconds, clamped = SessionDuration(start, start)
	assert.Equal(t, 0.0, seconds)
	assert.False(t, clamped)

	seconds, clamped = SessionDuration(start, start.Add(-time.Minute))
	assert.Equal(t, 0.0, seconds)
	assert.True(t, clamped)
}

func TestNodeHasContainer(t *testing.T) {
	empty := ""
	ref := "ctr-1"

	assert.False(t, (&Node{}).HasContainer())
	assert.False(t, (&Node{ContainerRef: &empty}).HasContainer())
	assert.True(t, (&Node{ContainerRef: &ref}).HasContainer())
}

func TestTierUnlimited(t *testing.T) {
	assert.True(t, (&TierDefinition{ResourceCapMinutes: Unlimited}).HasUnlimitedResource())
	assert.False(t, (&TierDefinition{ResourceCapMinutes: 1000}).HasUnlimitedResource())
}
