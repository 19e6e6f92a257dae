package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/seagrayinc/overdrive/pkg/frame"
	"github.com/seagrayinc/overdrive/pkg/overdrive"
)

// notificationBuffer bounds how many frames may wait for a slow reader before new ones are
// dropped.
const notificationBuffer = 64

type adapterManager struct {
	adapter *bluetooth.Adapter

	service bluetooth.UUID
	read    bluetooth.UUID
	write   bluetooth.UUID

	scanMu sync.Mutex

	mu    sync.Mutex
	known map[string]bluetooth.Address
}

func newAdapterManager() (Manager, error) {
	service, err := bluetooth.ParseUUID(overdrive.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("parsing service uuid: %w", err)
	}
	read, err := bluetooth.ParseUUID(overdrive.ReadUUID)
	if err != nil {
		return nil, fmt.Errorf("parsing read uuid: %w", err)
	}
	write, err := bluetooth.ParseUUID(overdrive.WriteUUID)
	if err != nil {
		return nil, fmt.Errorf("parsing write uuid: %w", err)
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enabling bluetooth adapter: %w", err)
	}

	return &adapterManager{
		adapter: adapter,
		service: service,
		read:    read,
		write:   write,
		known:   make(map[string]bluetooth.Address),
	}, nil
}

func (m *adapterManager) Scan(ctx context.Context) ([]Info, error) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	var (
		mu    sync.Mutex
		found = make(map[string]Info)
		order []string
	)

	errc := make(chan error, 1)
	go func() {
		errc <- m.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(m.service) {
				return
			}
			addr := result.Address.String()

			mu.Lock()
			defer mu.Unlock()
			if _, ok := found[addr]; !ok {
				order = append(order, addr)
				slog.Debug("vehicle discovered", slog.String("address", addr), slog.Int("rssi", int(result.RSSI)))
			}
			found[addr] = Info{Address: addr, Name: result.LocalName(), RSSI: result.RSSI}
			m.remember(result.Address)
		})
	}()

	select {
	case <-ctx.Done():
		if err := m.adapter.StopScan(); err != nil {
			slog.Warn("failed to stop scan", slog.Any("error", err))
		}
		if err := <-errc; err != nil {
			return nil, fmt.Errorf("scanning: %w", err)
		}
	case err := <-errc:
		if err != nil {
			return nil, fmt.Errorf("scanning: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Info, 0, len(order))
	for _, addr := range order {
		out = append(out, found[addr])
	}
	return out, nil
}

func (m *adapterManager) Open(ctx context.Context, info Info) (Device, error) {
	addr, err := m.addressOf(ctx, info.Address)
	if err != nil {
		return nil, err
	}

	dev, err := m.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("connecting %s: %w", info.Address, err)
	}

	d := &adapterDevice{
		address:       info.Address,
		disconnect:    dev.Disconnect,
		notifications: make(chan []byte, notificationBuffer),
		closed:        make(chan struct{}),
	}

	services, err := dev.DiscoverServices([]bluetooth.UUID{m.service})
	if err != nil || len(services) == 0 {
		_ = d.Close()
		return nil, fmt.Errorf("discovering services of %s: %w", info.Address, firstErr(err, ErrServiceNotFound))
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{m.read, m.write})
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("discovering characteristics of %s: %w", info.Address, err)
	}

	var readFound, writeFound bool
	for _, c := range chars {
		switch c.UUID() {
		case m.read:
			if err := c.EnableNotifications(d.notify); err != nil {
				_ = d.Close()
				return nil, fmt.Errorf("enabling notifications of %s: %w", info.Address, err)
			}
			readFound = true
		case m.write:
			d.write = c.WriteWithoutResponse
			writeFound = true
		}
	}
	if !readFound || !writeFound {
		_ = d.Close()
		return nil, fmt.Errorf("%s: %w", info.Address, ErrCharacteristicNotFound)
	}

	slog.Info("vehicle connected", slog.String("address", info.Address))
	return d, nil
}

func (m *adapterManager) remember(addr bluetooth.Address) {
	m.mu.Lock()
	m.known[addr.String()] = addr
	m.mu.Unlock()
}

// addressOf finds the adapter address of a vehicle, scanning for it when it was not seen by an
// earlier Scan.
func (m *adapterManager) addressOf(ctx context.Context, address string) (bluetooth.Address, error) {
	m.mu.Lock()
	addr, ok := m.known[address]
	m.mu.Unlock()
	if ok {
		return addr, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	errc := make(chan error, 1)
	found := make(chan bluetooth.Address, 1)
	go func() {
		errc <- m.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if result.Address.String() != address {
				return
			}
			select {
			case found <- result.Address:
				_ = a.StopScan()
			default:
			}
		})
	}()

	select {
	case addr = <-found:
		<-errc
		m.remember(addr)
		return addr, nil
	case <-ctx.Done():
		_ = m.adapter.StopScan()
		<-errc
		return addr, fmt.Errorf("looking up %s: %w", address, ctx.Err())
	case err := <-errc:
		if err == nil {
			err = ErrClosed
		}
		return addr, fmt.Errorf("looking up %s: %w", address, err)
	}
}

type adapterDevice struct {
	address    string
	disconnect func() error
	write      func([]byte) (int, error)

	notifications chan []byte
	closed        chan struct{}
	closeOnce     sync.Once
}

func (d *adapterDevice) Address() string {
	return d.address
}

func (d *adapterDevice) Write(_ context.Context, p []byte) error {
	select {
	case <-d.closed:
		return ErrClosed
	default:
	}
	slog.Debug("writing frame", slog.String("address", d.address), slog.String("bytes", frame.EncodeToString(p)))
	if _, err := d.write(p); err != nil {
		return fmt.Errorf("writing %s: %w", d.address, err)
	}
	return nil
}

// notify runs on the bluetooth stack's goroutine. The buffer it hands over is reused by the
// stack, so it is copied.
func (d *adapterDevice) notify(buf []byte) {
	b := make([]byte, len(buf))
	copy(b, buf)

	select {
	case <-d.closed:
		return
	default:
	}
	select {
	case d.notifications <- b:
	default:
		slog.Warn("notification buffer full, dropping frame", slog.String("address", d.address))
	}
}

func (d *adapterDevice) PollNotifications(ctx context.Context) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.closed:
				return
			case b := <-d.notifications:
				select {
				case out <- b:
				case <-ctx.Done():
					return
				case <-d.closed:
					return
				}
			}
		}
	}()
	return out
}

func (d *adapterDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.closed)
		err = d.disconnect()
	})
	return err
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
