package memory

import (
	"testing"
	"time"

	"csv-dedupe-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	repo := NewSessionRepository(time.Minute)

	id := repo.Create(&entity.SessionState{})
	require.NotEmpty(t, id)

	state, found := repo.Get(id)
	require.True(t, found)
	assert.Equal(t, id, state.Id)
	assert.WithinDuration(t, time.Now(), state.LastInteraction, time.Second)
}

func TestCreateAllocatesUniqueIDs(t *testing.T) {
	repo := NewSessionRepository(time.Minute)

	first := repo.Create(&entity.SessionState{})
	second := repo.Create(&entity.SessionState{})
	assert.NotEqual(t, first, second)
}

func TestGetMissing(t *testing.T) {
	repo := NewSessionRepository(time.Minute)

	_, found := repo.Get("nope")
	assert.False(t, found)
}

func TestIdleSessionExpires(t *testing.T) {
	repo := NewSessionRepository(50 * time.Millisecond)

	stale := repo.Create(&entity.SessionState{})
	time.Sleep(80 * time.Millisecond)

	// The next create sweeps; the stale session must not survive.
	fresh := repo.Create(&entity.SessionState{})

	_, found := repo.Get(stale)
	assert.False(t, found)
	_, found = repo.Get(fresh)
	assert.True(t, found)
	assert.Equal(t, 1, repo.Count())
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	repo := NewSessionRepository(80 * time.Millisecond)

	id := repo.Create(&entity.SessionState{})
	before, _ := repo.Get(id)
	firstSeen := before.LastInteraction

	for i := 0; i < 3; i++ {
		time.Sleep(50 * time.Millisecond)
		repo.Touch(id)
	}

	state, found := repo.Get(id)
	require.True(t, found)
	assert.True(t, state.LastInteraction.After(firstSeen))
}

func TestDeleteIdempotent(t *testing.T) {
	repo := NewSessionRepository(time.Minute)

	id := repo.Create(&entity.SessionState{})
	repo.Delete(id)
	repo.Delete(id)

	_, found := repo.Get(id)
	assert.False(t, found)
}
