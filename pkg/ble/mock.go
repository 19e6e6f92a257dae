package ble

import (
	"context"
	"fmt"
	"sync"
)

// MockDevice is an in-memory Device. Frames passed to Emit are delivered to the channel
// returned by PollNotifications.
type MockDevice struct {
	address       string
	notifications chan []byte
	closed        chan struct{}
	closeOnce     sync.Once

	mu      sync.Mutex
	written [][]byte
	onWrite func([]byte)
}

func NewMockDevice(address string) *MockDevice {
	return &MockDevice{
		address:       address,
		notifications: make(chan []byte),
		closed:        make(chan struct{}),
	}
}

func (m *MockDevice) Address() string {
	return m.address
}

// OnWrite registers fn to be called with every frame written to the device.
func (m *MockDevice) OnWrite(fn func([]byte)) {
	m.mu.Lock()
	m.onWrite = fn
	m.mu.Unlock()
}

func (m *MockDevice) Write(_ context.Context, p []byte) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}

	b := make([]byte, len(p))
	copy(b, p)

	m.mu.Lock()
	m.written = append(m.written, b)
	fn := m.onWrite
	m.mu.Unlock()

	if fn != nil {
		fn(b)
	}
	return nil
}

// Written returns every frame written so far.
func (m *MockDevice) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

func (m *MockDevice) PollNotifications(ctx context.Context) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.closed:
				return
			case b := <-m.notifications:
				select {
				case out <- b:
				case <-ctx.Done():
					return
				case <-m.closed:
					return
				}
			}
		}
	}()
	return out
}

// Emit hands b to the poller. It blocks until the frame is picked up or the device is closed,
// and reports whether the frame was delivered.
func (m *MockDevice) Emit(b []byte) bool {
	select {
	case m.notifications <- b:
		return true
	case <-m.closed:
		return false
	}
}

func (m *MockDevice) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	return nil
}

func (m *MockDevice) Closed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// MockManager serves MockDevices keyed by address.
type MockManager struct {
	mu      sync.Mutex
	infos   []Info
	devices map[string]*MockDevice
	opened  map[string]int
}

func NewMockManager() *MockManager {
	return &MockManager{
		devices: make(map[string]*MockDevice),
		opened:  make(map[string]int),
	}
}

// Add makes a device visible to Scan and returns the device Open will hand out for it.
func (m *MockManager) Add(info Info) *MockDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := NewMockDevice(info.Address)
	m.infos = append(m.infos, info)
	m.devices[info.Address] = d
	return d
}

// Remove hides a device from future scans.
func (m *MockManager) Remove(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, info := range m.infos {
		if info.Address == address {
			m.infos = append(m.infos[:i], m.infos[i+1:]...)
			break
		}
	}
}

// Scan returns the visible devices immediately.
func (m *MockManager) Scan(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil && err != context.DeadlineExceeded {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, len(m.infos))
	copy(out, m.infos)
	return out, nil
}

func (m *MockManager) Open(_ context.Context, info Info) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[info.Address]
	if !ok {
		return nil, fmt.Errorf("open %s: unknown device", info.Address)
	}
	m.opened[info.Address]++
	return d, nil
}

// Opened reports how many times the device at address was opened.
func (m *MockManager) Opened(address string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened[address]
}
