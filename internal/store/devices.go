package store

import (
	"sync"

	"github.com/testbench/inspection-agent/internal/models"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

// DeviceStore is the in-memory device cache, refreshed on demand from the
// driver registry. Connection state is owned by the device service.
type DeviceStore struct {
	mu      sync.RWMutex
	devices map[models.DeviceType]models.Device
	order   []models.DeviceType
}

func NewDeviceStore() *DeviceStore {
	return &DeviceStore{
		devices: make(map[models.DeviceType]models.Device),
	}
}

func (s *DeviceStore) Get(t models.DeviceType) (models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[t]
	if !ok {
		return models.Device{}, srvErrors.NewDeviceNotFoundError(string(t))
	}
	return d, nil
}

func (s *DeviceStore) List() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Device, 0, len(s.order))
	for _, t := range s.order {
		out = append(out, s.devices[t])
	}
	return out
}

// Upsert inserts or updates a registry record. The locally tracked
// connection state survives a refresh: the registry only contributes the
// port and id once the agent has taken ownership of the device.
func (s *DeviceStore) Upsert(d models.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.devices[d.Type]
	if !ok {
		s.devices[d.Type] = d
		s.order = append(s.order, d.Type)
		return
	}

	existing.ID = d.ID
	existing.Port = d.Port
	s.devices[d.Type] = existing
}

// SetState updates the connection state of one device.
func (s *DeviceStore) SetState(t models.DeviceType, state models.ConnectionState, lastError string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[t]
	if !ok {
		d = models.Device{Type: t}
		s.order = append(s.order, t)
	}
	d.State = state
	d.LastError = lastError
	s.devices[t] = d
}
