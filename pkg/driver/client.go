// Package driver talks to the device driver backend: the HTTP command
// surface and the websocket event stream. The driver owns the physical
// instrument I/O; the agent only issues commands and consumes events.
package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/testbench/inspection-agent/internal/models"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SequentialRequest starts the driver-side sequential inspection. The driver
// drives the instruments and pushes phase/measurement events back over the
// stream.
type SequentialRequest struct {
	Barcode             string  `json:"barcode"`
	ModelID             string  `json:"modelId"`
	MeasurementDuration float64 `json:"measurementDuration"`
	WaitDuration        float64 `json:"waitDuration"`
	IntervalSeconds     float64 `json:"intervalSeconds"`
}

// StartSequentialInspection requests the sequential inspection run.
// POST /api/v1/inspection/sequential/start
func (c *Client) StartSequentialInspection(ctx context.Context, req SequentialRequest) error {
	return c.post(ctx, "/api/v1/inspection/sequential/start", req, nil)
}

// StopInspection asks the driver to stop the current run. Best effort on the
// caller side: local session state never depends on this succeeding.
// POST /api/v1/inspection/stop
func (c *Client) StopInspection(ctx context.Context) error {
	return c.post(ctx, "/api/v1/inspection/stop", nil, nil)
}

// CommandResult is the discriminated outcome of a raw command round trip:
// either a response line or a failure reason, never both.
type CommandResult struct {
	ok       bool
	response string
	reason   string
}

func OkResult(response string) CommandResult {
	return CommandResult{ok: true, response: response}
}

func ErrResult(reason string) CommandResult {
	return CommandResult{reason: reason}
}

// Response returns the response line and whether the command succeeded.
func (r CommandResult) Response() (string, bool) {
	return r.response, r.ok
}

// Reason returns the failure reason for an unsuccessful command.
func (r CommandResult) Reason() string {
	return r.reason
}

type rawCommandRequest struct {
	DeviceID       string  `json:"deviceId"`
	Command        string  `json:"command"`
	TimeoutSeconds float64 `json:"timeoutSeconds"`
}

type rawCommandResponse struct {
	Success  bool    `json:"success"`
	Response *string `json:"response,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// SendRawCommand relays one command/response round trip through the driver.
// POST /api/v1/serial/send-command
func (c *Client) SendRawCommand(ctx context.Context, deviceID, command string, timeout time.Duration) (CommandResult, error) {
	req := rawCommandRequest{
		DeviceID:       deviceID,
		Command:        command,
		TimeoutSeconds: timeout.Seconds(),
	}

	var resp rawCommandResponse
	if err := c.post(ctx, "/api/v1/serial/send-command", req, &resp); err != nil {
		return CommandResult{}, err
	}

	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "command failed"
		}
		return ErrResult(reason), nil
	}

	response := ""
	if resp.Response != nil {
		response = *resp.Response
	}
	return OkResult(response), nil
}

type registryDevice struct {
	ID               string `json:"id"`
	DeviceType       string `json:"device_type"`
	ConnectionStatus string `json:"connection_status"`
	Port             string `json:"port"`
}

type registryResponse struct {
	Devices []registryDevice `json:"devices"`
}

// ListDevices queries the driver's device registry.
// GET /api/v1/devices
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var resp registryResponse
	if err := c.get(ctx, "/api/v1/devices", &resp); err != nil {
		return nil, err
	}

	devices := make([]models.Device, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		deviceType, err := models.ParseDeviceType(d.DeviceType)
		if err != nil {
			// registry entries the agent does not manage are skipped
			continue
		}
		state := models.ConnectionStateDisconnected
		if d.ConnectionStatus == "connected" {
			state = models.ConnectionStateConnected
		}
		devices = append(devices, models.Device{
			ID:    d.ID,
			Type:  deviceType,
			Port:  d.Port,
			State: state,
		})
	}
	return devices, nil
}

// ConnectDevice asks the driver to open the device's transport.
// POST /api/v1/devices/{type}/connect
func (c *Client) ConnectDevice(ctx context.Context, deviceType models.DeviceType) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/devices/%s/connect", deviceType), nil, nil)
}

// DisconnectDevice asks the driver to close the device's transport.
// POST /api/v1/devices/{type}/disconnect
func (c *Client) DisconnectDevice(ctx context.Context, deviceType models.DeviceType) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/devices/%s/disconnect", deviceType), nil, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request for %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return srvErrors.NewGatewayError(0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return srvErrors.NewGatewayError(resp.StatusCode, string(bytes.TrimSpace(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return srvErrors.NewGatewayError(resp.StatusCode, fmt.Sprintf("decoding response: %v", err))
	}
	return nil
}
