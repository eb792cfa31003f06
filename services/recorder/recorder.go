// services/recorder/recorder.go
package recorder

import (
	"context"
	"io"
	"log/slog"
	"time"

	"sensorhub-go/bus"
)

// Service subscribes to sensor value events and writes them to the store in
// batches: a batch is flushed when it reaches MaxBatchSize or when the flush
// interval elapses with pending rows.
type Service struct {
	store        *Store
	maxBatchSize int
	flushEvery   time.Duration
	logger       *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With(slog.String("service", "recorder"))
	}
}

// WithBatchSize overrides the batch watermark (default 64).
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithFlushInterval overrides the time-based flush (default 2s).
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushEvery = d
		}
	}
}

// New creates a recorder writing to store.
func New(store *Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		maxBatchSize: 64,
		flushEvery:   2 * time.Second,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run creates a session, subscribes to all sensor values, and blocks until
// ctx is cancelled. Pending rows are flushed on shutdown.
func (s *Service) Run(ctx context.Context, conn *bus.Connection, device string) error {
	sessionID, err := s.store.CreateSession(ctx, device, nil)
	if err != nil {
		return err
	}
	s.logger.Info("recording session opened", slog.Int64("session", sessionID))

	// sensors/sensor/<type>/<handle>/value
	sub := conn.Subscribe(bus.Topic{"sensors", "sensor", "+", "+", "value"})
	defer conn.Unsubscribe(sub)

	tick := time.NewTicker(s.flushEvery)
	defer tick.Stop()

	var batch []Row
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.store.WriteBatch(context.WithoutCancel(ctx), sessionID, batch); err != nil {
			s.logger.Error("batch write failed",
				slog.Int("rows", len(batch)), slog.Any("error", err))
		}
		batch = nil
	}
	defer flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			flush()
		case msg := <-sub.Channel():
			row, ok := rowFromMessage(msg)
			if !ok {
				continue
			}
			batch = append(batch, row)
			if len(batch) >= s.maxBatchSize {
				flush()
			}
		}
	}
}

// timestamped is satisfied by value payloads carrying a producer timestamp.
type timestamped interface {
	Timestamp() int64
}

// rowFromMessage maps a value message topic to a store row. The producer
// timestamp is preferred; receive time is the fallback for payloads that
// carry none.
func rowFromMessage(msg *bus.Message) (Row, bool) {
	if len(msg.Topic) < 5 {
		return Row{}, false
	}
	sensorType, ok := msg.Topic[2].(string)
	if !ok {
		return Row{}, false
	}
	handle, ok := msg.Topic[3].(int)
	if !ok {
		return Row{}, false
	}
	ts := time.Now().UnixMilli()
	if tv, ok := msg.Payload.(timestamped); ok && tv.Timestamp() > 0 {
		ts = tv.Timestamp()
	}
	return Row{
		SensorType: sensorType,
		Handle:     handle,
		TsMs:       ts,
		Payload:    msg.Payload,
	}, true
}
