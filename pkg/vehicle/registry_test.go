package vehicle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/overdrive/pkg/ble"
)

type events struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (e *events) watch(r *Registry) {
	r.OnOnline(func(v *Vehicle) {
		e.mu.Lock()
		e.online = append(e.online, v.ID())
		e.mu.Unlock()
	})
	r.OnOffline(func(v *Vehicle) {
		e.mu.Lock()
		e.offline = append(e.offline, v.ID())
		e.mu.Unlock()
	})
}

func (e *events) snapshot() (online, offline []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.online...), append([]string(nil), e.offline...)
}

func TestRegistrySync(t *testing.T) {
	manager := ble.NewMockManager()
	manager.Add(ble.Info{Address: "bb", Name: "Skull"})
	manager.Add(ble.Info{Address: "aa", Name: "Thermo"})

	r := NewRegistry(manager, WithDiscoveryWindow(10*time.Millisecond))
	var e events
	e.watch(r)

	require.NoError(t, r.Sync(context.Background()))
	online, offline := e.snapshot()
	assert.ElementsMatch(t, []string{"aa", "bb"}, online)
	assert.Empty(t, offline)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "aa", all[0].ID())
	assert.Equal(t, "bb", all[1].ID())

	// Already known vehicles do not go online twice.
	require.NoError(t, r.Sync(context.Background()))
	online, _ = e.snapshot()
	assert.Len(t, online, 2)

	// A vanished vehicle goes offline unless it is connected.
	aa, ok := r.Get("aa")
	require.True(t, ok)
	require.NoError(t, aa.Connect(context.Background()))
	defer func() { _ = aa.Disconnect(context.Background()) }()

	manager.Remove("aa")
	manager.Remove("bb")
	require.NoError(t, r.Sync(context.Background()))

	_, offline = e.snapshot()
	assert.Equal(t, []string{"bb"}, offline)
	_, ok = r.Get("bb")
	assert.False(t, ok)
	_, ok = r.Get("aa")
	assert.True(t, ok)
}

func TestRegistryRun(t *testing.T) {
	manager := ble.NewMockManager()
	r := NewRegistry(manager, WithDiscoveryWindow(time.Millisecond))
	var e events
	e.watch(r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, 5*time.Millisecond)
	}()

	manager.Add(ble.Info{Address: "cc"})
	require.Eventually(t, func() bool {
		online, _ := e.snapshot()
		return len(online) == 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRegistryFind(t *testing.T) {
	manager := ble.NewMockManager()
	r := NewRegistry(manager, WithDiscoveryWindow(time.Millisecond))
	ctx := context.Background()

	_, err := r.FindAny(ctx)
	assert.ErrorIs(t, err, ErrVehicleNotFound)

	manager.Add(ble.Info{Address: "bb", Name: "Skull"})
	manager.Add(ble.Info{Address: "aa", Name: "Thermo"})

	v, err := r.FindAny(ctx)
	require.NoError(t, err)
	assert.Equal(t, "aa", v.ID())

	v, err = r.Find(ctx, "bb")
	require.NoError(t, err)
	assert.Equal(t, "Skull", v.Name())

	_, err = r.Find(ctx, "cc")
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}
