package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/testbench/inspection-agent/internal/models"
	"github.com/testbench/inspection-agent/internal/store"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

// DeviceGateway is the transport side of device lifecycle management,
// implemented by the driver client.
type DeviceGateway interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	ConnectDevice(ctx context.Context, deviceType models.DeviceType) error
	DisconnectDevice(ctx context.Context, deviceType models.DeviceType) error
}

// DeviceService owns the connection lifecycle of the bench instruments.
// All state transitions funnel through one mutex.
type DeviceService struct {
	gateway DeviceGateway
	devices *store.DeviceStore

	settleDelay time.Duration

	mu  sync.Mutex
	log *zap.SugaredLogger
}

func NewDeviceService(gateway DeviceGateway, devices *store.DeviceStore, settleDelay time.Duration) *DeviceService {
	return &DeviceService{
		gateway:     gateway,
		devices:     devices,
		settleDelay: settleDelay,
		log:         zap.S().Named("device_service"),
	}
}

// Connect brings a device to CONNECTED. Connecting an already connected
// device is a no-op success. A device the transport still considers open
// is closed first and given a settle delay before the reconnect, so a
// half-open serial port does not fail the attempt with port-busy.
func (d *DeviceService) Connect(ctx context.Context, deviceType models.DeviceType) (models.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if current, err := d.devices.Get(deviceType); err == nil && current.State == models.ConnectionStateConnected {
		return current, nil
	}

	d.devices.SetState(deviceType, models.ConnectionStateConnecting, "")

	if d.halfOpen(ctx, deviceType) {
		d.log.Infow("device half-open, cycling connection", "device", deviceType)
		if err := d.gateway.DisconnectDevice(ctx, deviceType); err != nil {
			d.log.Warnw("half-open disconnect failed", "device", deviceType, "error", err)
		}
		select {
		case <-time.After(d.settleDelay):
		case <-ctx.Done():
			d.devices.SetState(deviceType, models.ConnectionStateError, ctx.Err().Error())
			return models.Device{}, srvErrors.NewConnectError(string(deviceType), ctx.Err())
		}
	}

	if err := d.gateway.ConnectDevice(ctx, deviceType); err != nil {
		d.devices.SetState(deviceType, models.ConnectionStateError, err.Error())
		return models.Device{}, srvErrors.NewConnectError(string(deviceType), err)
	}

	d.devices.SetState(deviceType, models.ConnectionStateConnected, "")
	d.log.Infow("device connected", "device", deviceType)

	device, err := d.devices.Get(deviceType)
	if err != nil {
		return models.Device{}, err
	}
	return device, nil
}

// Disconnect is best effort: a failing teardown is logged and the state is
// forced to DISCONNECTED regardless.
func (d *DeviceService) Disconnect(ctx context.Context, deviceType models.DeviceType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.gateway.DisconnectDevice(ctx, deviceType); err != nil {
		d.log.Warnw("disconnect failed, forcing state", "device", deviceType, "error", err)
	}
	d.devices.SetState(deviceType, models.ConnectionStateDisconnected, "")
}

// Status returns the tracked connection state of a device, DISCONNECTED for
// a device never seen.
func (d *DeviceService) Status(deviceType models.DeviceType) models.ConnectionState {
	device, err := d.devices.Get(deviceType)
	if err != nil {
		return models.ConnectionStateDisconnected
	}
	return device.State
}

// List returns the cached devices, refreshed from the driver registry when
// requested.
func (d *DeviceService) List(ctx context.Context, refresh bool) ([]models.Device, error) {
	if refresh {
		registry, err := d.gateway.ListDevices(ctx)
		if err != nil {
			return nil, err
		}
		for _, device := range registry {
			d.devices.Upsert(device)
		}
	}
	return d.devices.List(), nil
}

// halfOpen reports whether the transport side still holds the device open
// while the local state is not CONNECTED. Registry errors are treated as
// not half-open; the connect attempt decides.
func (d *DeviceService) halfOpen(ctx context.Context, deviceType models.DeviceType) bool {
	registry, err := d.gateway.ListDevices(ctx)
	if err != nil {
		return false
	}
	for _, device := range registry {
		if device.Type == deviceType {
			return device.State == models.ConnectionStateConnected
		}
	}
	return false
}
