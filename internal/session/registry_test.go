package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("nope")

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistry_UpdateStoresStateOnError(t *testing.T) {
	r := NewRegistry()
	r.Put(NewState("s1"))

	_, err := r.Update("s1", func(s AppState) (AppState, error) {
		s.Notice = "failed"
		s.ID = "hijacked"
		return s, errors.New("boom")
	})
	require.Error(t, err)

	got, err := r.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Notice)
	assert.Equal(t, "s1", got.ID)
}

func TestRegistry_ConcurrentUpdatesSerialize(t *testing.T) {
	r := NewRegistry()
	r.Put(NewState("s1"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Update("s1", func(s AppState) (AppState, error) {
				return s.withMessages(Message{Role: RoleUser, Content: "q"}), nil
			})
		}()
	}
	wg.Wait()

	got, err := r.Get("s1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 50)
}

func TestRegistry_UpdateOthers(t *testing.T) {
	r := NewRegistry()
	r.Put(NewState("a"))
	r.Put(NewState("b"))
	r.Put(NewState("c"))

	r.UpdateOthers("a", func(s AppState) AppState {
		s.Notice = "refreshed"
		return s
	})

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	c, _ := r.Get("c")
	assert.Empty(t, a.Notice)
	assert.Equal(t, "refreshed", b.Notice)
	assert.Equal(t, "refreshed", c.Notice)
}

func TestRegistry_Delete(t *testing.T) {
	r := NewRegistry()
	r.Put(NewState("s1"))

	assert.True(t, r.Delete("s1"))
	assert.False(t, r.Delete("s1"))
	assert.Zero(t, r.Len())
}
