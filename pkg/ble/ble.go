// Package ble opens vehicles over Bluetooth Low Energy.
package ble

import (
	"context"
	"errors"
)

var (
	ErrCharacteristicNotFound = errors.New("ble: vehicle characteristic not found")
	ErrServiceNotFound        = errors.New("ble: vehicle service not found")
	ErrClosed                 = errors.New("ble: device closed")
)

// Info describes a vehicle found while scanning.
type Info struct {
	Address string
	Name    string
	RSSI    int16
}

// Device is a connected vehicle.
type Device interface {
	Address() string
	// Write sends one frame to the write characteristic.
	Write(ctx context.Context, p []byte) error
	// PollNotifications streams frames from the read characteristic until ctx ends or the
	// device is closed.
	PollNotifications(ctx context.Context) <-chan []byte
	Close() error
}

// Manager discovers and connects vehicles.
type Manager interface {
	// Scan reports every vehicle advertising the vehicle service until ctx ends.
	Scan(ctx context.Context) ([]Info, error)
	Open(ctx context.Context, info Info) (Device, error)
}

// NewManager returns a Manager on the default Bluetooth adapter.
func NewManager() (Manager, error) {
	return newAdapterManager()
}
