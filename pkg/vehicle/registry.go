package vehicle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/seagrayinc/overdrive/pkg/ble"
)

const (
	DefaultDiscoveryWindow = 500 * time.Millisecond
	DefaultSyncInterval    = 3 * time.Second
)

var ErrVehicleNotFound = errors.New("vehicle: not found")

type RegistryOption func(*Registry)

// WithDiscoveryWindow sets how long each Sync listens for advertising vehicles.
func WithDiscoveryWindow(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithVehicleOptions applies opts to every vehicle the registry creates.
func WithVehicleOptions(opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.vehicleOpts = append(r.vehicleOpts, opts...)
	}
}

// Registry tracks the vehicles in range. Vehicles that are discovered go online; vehicles
// that are neither connected nor discovered again go offline.
type Registry struct {
	manager     ble.Manager
	window      time.Duration
	vehicleOpts []Option

	syncMu sync.Mutex

	mu        sync.RWMutex
	vehicles  map[string]*Vehicle
	onOnline  []func(*Vehicle)
	onOffline []func(*Vehicle)
}

func NewRegistry(manager ble.Manager, opts ...RegistryOption) *Registry {
	r := &Registry{
		manager:  manager,
		window:   DefaultDiscoveryWindow,
		vehicles: make(map[string]*Vehicle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Get(id string) (*Vehicle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[id]
	return v, ok
}

// All returns the known vehicles ordered by id.
func (r *Registry) All() []*Vehicle {
	r.mu.RLock()
	out := make([]*Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		out = append(out, v)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

func (r *Registry) OnOnline(fn func(*Vehicle)) {
	r.mu.Lock()
	r.onOnline = append(r.onOnline, fn)
	r.mu.Unlock()
}

func (r *Registry) OnOffline(fn func(*Vehicle)) {
	r.mu.Lock()
	r.onOffline = append(r.onOffline, fn)
	r.mu.Unlock()
}

// Sync runs one discovery window and updates the registry.
func (r *Registry) Sync(ctx context.Context) error {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	scanCtx, cancel := context.WithTimeout(ctx, r.window)
	infos, err := r.manager.Scan(scanCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("discovering vehicles: %w", err)
	}

	seen := make(map[string]bool, len(infos))
	var online, offline []*Vehicle

	r.mu.Lock()
	for _, info := range infos {
		seen[info.Address] = true
		if _, ok := r.vehicles[info.Address]; ok {
			continue
		}
		v, err := New(info, r.manager, r.vehicleOpts...)
		if err != nil {
			slog.Warn("failed to create vehicle", slog.String("address", info.Address), slog.Any("error", err))
			continue
		}
		r.vehicles[info.Address] = v
		online = append(online, v)
	}
	for id, v := range r.vehicles {
		if !seen[id] && !v.Connected() {
			delete(r.vehicles, id)
			offline = append(offline, v)
		}
	}
	onOnline := slices.Clone(r.onOnline)
	onOffline := slices.Clone(r.onOffline)
	r.mu.Unlock()

	for _, v := range online {
		slog.Info("vehicle online", slog.String("id", v.ID()), slog.String("name", v.Name()))
		for _, fn := range onOnline {
			fn(v)
		}
	}
	for _, v := range offline {
		slog.Info("vehicle offline", slog.String("id", v.ID()))
		for _, fn := range onOffline {
			fn(v)
		}
	}
	return nil
}

// FindAny runs one discovery window and returns the first vehicle in range, ordered by id.
func (r *Registry) FindAny(ctx context.Context) (*Vehicle, error) {
	if err := r.Sync(ctx); err != nil {
		return nil, err
	}
	if all := r.All(); len(all) > 0 {
		return all[0], nil
	}
	return nil, ErrVehicleNotFound
}

// Find runs one discovery window and returns the vehicle with the given address.
func (r *Registry) Find(ctx context.Context, address string) (*Vehicle, error) {
	if err := r.Sync(ctx); err != nil {
		return nil, err
	}
	if v, ok := r.Get(address); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%s: %w", address, ErrVehicleNotFound)
}

// Run syncs every interval until ctx ends. Failed syncs are logged and retried on the next
// tick.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.Sync(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("vehicle sync failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
