package driver

import (
	"context"
	"errors"
	"time"

	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

// Commander relays command/response round trips to one device through the
// driver backend. It satisfies the Commander interface the safety path uses,
// interchangeable with the direct serial transport.
type Commander struct {
	client   *Client
	deviceID string
}

func NewCommander(client *Client, deviceID string) *Commander {
	return &Commander{client: client, deviceID: deviceID}
}

// SendCommand runs one round trip with an explicit budget. The budget is
// mandatory: a stuck instrument must never leave the caller blocked.
func (c *Commander) SendCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.client.SendRawCommand(ctx, c.deviceID, command, timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", srvErrors.NewTimeoutError(command, timeout)
		}
		return "", err
	}

	response, ok := result.Response()
	if !ok {
		return "", srvErrors.NewGatewayError(0, result.Reason())
	}
	return response, nil
}
