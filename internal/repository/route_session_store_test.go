package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CarbonSense/service-estimation/internal/domain/route"
)

func TestRouteSessionStore_PutAndGet(t *testing.T) {
	store := NewRouteSessionStore(time.Minute)

	sel := route.NewRouteSelection()
	store.Put(sel)

	got, err := store.Get(sel.ID())
	require.NoError(t, err)
	assert.Same(t, sel, got)
}

func TestRouteSessionStore_UnknownID(t *testing.T) {
	store := NewRouteSessionStore(time.Minute)

	_, err := store.Get(uuid.New())
	require.Error(t, err)
}

func TestRouteSessionStore_ExpiresAfterTTL(t *testing.T) {
	store := NewRouteSessionStore(time.Minute)
	base := time.Now()
	store.now = func() time.Time { return base }

	sel := route.NewRouteSelection()
	store.Put(sel)

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err := store.Get(sel.ID())
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestRouteSessionStore_GetRefreshesTTL(t *testing.T) {
	store := NewRouteSessionStore(time.Minute)
	base := time.Now()
	store.now = func() time.Time { return base }

	sel := route.NewRouteSelection()
	store.Put(sel)

	// Touch at 50s, then read again at 100s: still within the refreshed TTL.
	store.now = func() time.Time { return base.Add(50 * time.Second) }
	_, err := store.Get(sel.ID())
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(100 * time.Second) }
	_, err = store.Get(sel.ID())
	require.NoError(t, err)
}

func TestRouteSessionStore_Delete(t *testing.T) {
	store := NewRouteSessionStore(time.Minute)

	sel := route.NewRouteSelection()
	store.Put(sel)
	store.Delete(sel.ID())

	_, err := store.Get(sel.ID())
	require.Error(t, err)
}
