package memory

import (
	"time"

	"csv-dedupe-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionRepository is the keyed session store. go-cache provides the TTL
// and the periodic janitor sweep; Create additionally sweeps opportunistically
// so no session outlives the TTL by more than one upload, whichever comes
// first. Entries are reachable only by their capability token.
type SessionRepository struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	c := cache.New(ttl, ttl/6)
	return &SessionRepository{
		cache: c,
		ttl:   ttl,
	}
}

// Create allocates a fresh session id, inserts the state and sweeps expired
// entries as a side effect. Upload frequency bounds the sweep frequency.
func (r *SessionRepository) Create(state *entity.SessionState) string {
	r.cache.DeleteExpired()

	id := uuid.NewString()
	state.Id = id
	state.LastInteraction = time.Now()
	r.cache.Set(id, state, cache.DefaultExpiration)
	return id
}

func (r *SessionRepository) Get(sessionID string) (*entity.SessionState, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*entity.SessionState), true
	}
	return nil, false
}

// Touch refreshes the session's expiry and last-interaction time. Every
// mutating workflow operation calls this. The timestamp write takes the
// session mutex: go-cache's Get only read-locks its own map, so without it
// two concurrent operations on one session would race on the field.
func (r *SessionRepository) Touch(sessionID string) {
	if x, found := r.cache.Get(sessionID); found {
		state := x.(*entity.SessionState)
		state.Lock()
		state.LastInteraction = time.Now()
		state.Unlock()
		r.cache.Set(sessionID, state, cache.DefaultExpiration)
	}
}

// Delete removes the session. Idempotent.
func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// Count returns the number of live sessions.
func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
