package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/testbench/inspection-agent/internal/metrics"
	"github.com/testbench/inspection-agent/internal/models"
	"github.com/testbench/inspection-agent/pkg/driver"
	"github.com/testbench/inspection-agent/pkg/retry"
)

// EventSink consumes the stream's events and its terminal error, in arrival
// order.
type EventSink interface {
	Enqueue(models.StreamEvent)
	OnStreamError(error)
}

// StreamConn is one established stream instance.
type StreamConn interface {
	State() models.StreamState
	Err() error
	Done() <-chan struct{}
	Close()
}

// DialFunc establishes one stream instance. Injected so tests can avoid a
// real websocket endpoint.
type DialFunc func(ctx context.Context, url string, handler func(models.StreamEvent), onClose func(error)) (StreamConn, error)

// DefaultDial dials the driver's websocket push endpoint.
func DefaultDial(ctx context.Context, url string, handler func(models.StreamEvent), onClose func(error)) (StreamConn, error) {
	return driver.DialStream(ctx, url, handler, onClose)
}

// StreamService owns the reconnect policy for the driver event stream. A
// connect or reconnect request dials with exponential backoff; a stream that
// dies after being established is never redialed on its own, the operator
// has to trigger the reconnect action.
type StreamService struct {
	url      string
	dial     DialFunc
	sink     EventSink
	retryCfg retry.Config
	metrics  *metrics.Metrics

	// dialMu serializes connect/reconnect sequences; mu guards the
	// installed stream and status so Status stays responsive while a
	// backoff dial is in flight.
	dialMu sync.Mutex
	mu     sync.Mutex
	stream StreamConn
	status models.StreamStatus
	log    *zap.SugaredLogger
}

func NewStreamService(url string, dial DialFunc, sink EventSink, retryCfg retry.Config, m *metrics.Metrics) *StreamService {
	return &StreamService{
		url:      url,
		dial:     dial,
		sink:     sink,
		retryCfg: retryCfg,
		metrics:  m,
		status:   models.StreamStatus{State: models.StreamStateDisconnected},
		log:      zap.S().Named("stream_service"),
	}
}

// Connect dials the push endpoint with backoff. Connecting while a stream is
// already established is a no-op success.
func (s *StreamService) Connect(ctx context.Context) error {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.mu.Lock()
	if s.stream != nil && s.stream.State() == models.StreamStateConnected {
		s.mu.Unlock()
		return nil
	}
	s.status = models.StreamStatus{State: models.StreamStateConnecting}
	s.mu.Unlock()

	return s.establish(ctx)
}

// Reconnect tears the current stream down and dials a fresh instance.
func (s *StreamService) Reconnect(ctx context.Context) error {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.metrics.StreamReconnects.Inc()

	s.mu.Lock()
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
	s.status = models.StreamStatus{State: models.StreamStateConnecting}
	s.mu.Unlock()

	return s.establish(ctx)
}

// Status returns the operator-visible stream state.
func (s *StreamService) Status() models.StreamStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close tears the current stream down without publishing an error.
func (s *StreamService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
	s.status = models.StreamStatus{State: models.StreamStateDisconnected}
	s.metrics.StreamConnected.Set(0)
}

// establish runs the backoff dial outside s.mu and installs the result. The
// close callback is bound to the instance this dial produced; it waits on
// ready so an instance that dies immediately still matches the installed
// stream when the callback runs.
func (s *StreamService) establish(ctx context.Context) error {
	ready := make(chan struct{})
	var installed StreamConn

	stream, err := retry.DoWithResult(ctx, s.retryCfg, func() (StreamConn, error) {
		return s.dial(ctx, s.url, s.sink.Enqueue, func(closeErr error) {
			<-ready
			s.onStreamClosed(installed, closeErr)
		})
	})
	if err != nil {
		close(ready)
		s.mu.Lock()
		s.status = models.StreamStatus{State: models.StreamStateDisconnected, Error: err}
		s.mu.Unlock()
		s.metrics.StreamConnected.Set(0)
		s.log.Errorw("stream dial failed", "url", s.url, "error", err)
		return err
	}

	installed = stream
	s.mu.Lock()
	s.stream = stream
	s.status = models.StreamStatus{State: models.StreamStateConnected}
	s.mu.Unlock()
	close(ready)

	s.metrics.StreamConnected.Set(1)
	s.log.Infow("stream connected", "url", s.url)
	return nil
}

// onStreamClosed fires once when an established stream dies on a transport
// error. No redial here: the instance is terminal. A callback from an
// instance that has already been replaced or torn down is ignored, so a
// delayed close cannot clobber a live successor.
func (s *StreamService) onStreamClosed(conn StreamConn, err error) {
	s.mu.Lock()
	if s.stream != conn {
		s.mu.Unlock()
		s.log.Debugw("ignoring close from a superseded stream", "error", err)
		return
	}
	s.stream = nil
	s.status = models.StreamStatus{State: models.StreamStateDisconnected, Error: err}
	s.mu.Unlock()

	s.metrics.StreamConnected.Set(0)
	s.log.Warnw("stream disconnected", "error", err)
	s.sink.OnStreamError(err)
}
