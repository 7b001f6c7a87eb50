package models

import "fmt"

// DeviceType identifies a logical instrument on the bench.
type DeviceType string

const (
	DeviceTypePowerMeter     DeviceType = "power_meter"
	DeviceTypeSafetyTester   DeviceType = "safety_tester"
	DeviceTypeBarcodeScanner DeviceType = "barcode_scanner"
)

func ParseDeviceType(s string) (DeviceType, error) {
	switch s {
	case "power_meter":
		return DeviceTypePowerMeter, nil
	case "safety_tester":
		return DeviceTypeSafetyTester, nil
	case "barcode_scanner":
		return DeviceTypeBarcodeScanner, nil
	default:
		return "", fmt.Errorf("invalid device type: %s", s)
	}
}

// ConnectionState represents the connection lifecycle of a device.
type ConnectionState string

const (
	// ConnectionStateDisconnected - no transport connection
	ConnectionStateDisconnected ConnectionState = "disconnected"
	// ConnectionStateConnecting - connect request in flight
	ConnectionStateConnecting ConnectionState = "connecting"
	// ConnectionStateConnected - transport acknowledged the connection
	ConnectionStateConnected ConnectionState = "connected"
	// ConnectionStateError - last connect attempt failed
	ConnectionStateError ConnectionState = "error"
)

// Device is the in-memory record for one bench instrument. Connection state
// is mutated only by the device service; the record is never persisted.
type Device struct {
	ID        string
	Type      DeviceType
	Port      string
	State     ConnectionState
	LastError string
}
