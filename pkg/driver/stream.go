package driver

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/testbench/inspection-agent/internal/models"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

// Stream owns one websocket connection to the driver's push endpoint. The
// instance is single shot: once DISCONNECTED it never redials, the caller
// creates a fresh instance to retry.
type Stream struct {
	conn *websocket.Conn

	handler func(models.StreamEvent)
	onClose func(error)

	mu    sync.Mutex
	state models.StreamState
	err   error

	once sync.Once
	done chan struct{}
}

// DialStream connects to the push endpoint and starts the read loop. Events
// are dispatched to handler strictly in arrival order, synchronously on the
// read loop. onClose fires once when the stream dies on a transport error;
// it does not fire on an explicit Close.
func DialStream(ctx context.Context, url string, handler func(models.StreamEvent), onClose func(error)) (*Stream, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, srvErrors.NewGatewayError(resp.StatusCode, err.Error())
		}
		return nil, srvErrors.NewGatewayError(0, err.Error())
	}

	s := &Stream{
		conn:    conn,
		handler: handler,
		onClose: onClose,
		state:   models.StreamStateConnected,
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// State returns the stream lifecycle state.
func (s *Stream) State() models.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal error, if the stream died on one.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the stream reaches DISCONNECTED.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close tears the stream down without publishing a terminal error. The
// instance stays DISCONNECTED.
func (s *Stream) Close() {
	s.terminate(nil)
}

func (s *Stream) readLoop() {
	log := zap.S().Named("stream")
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			log.Warnw("stream transport error", "error", err)
			s.terminate(srvErrors.NewConnectionLostError())
			return
		}

		var ev models.StreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Warnw("dropping structurally invalid stream message", "error", err)
			continue
		}
		if !models.KnownEventType(ev.Type) {
			log.Debugw("dropping unknown stream event type", "type", ev.Type)
			continue
		}

		s.handler(ev)
	}
}

// terminate closes the transport itself so the socket can never be reused
// for an implicit reconnect, then publishes the terminal error once.
func (s *Stream) terminate(err error) {
	s.once.Do(func() {
		_ = s.conn.Close()

		s.mu.Lock()
		s.state = models.StreamStateDisconnected
		s.err = err
		s.mu.Unlock()

		if err != nil && s.onClose != nil {
			s.onClose(err)
		}
		close(s.done)
	})
}
