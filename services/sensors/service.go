// services/sensors/service.go
package sensors

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"sensorhub-go/bus"
	"sensorhub-go/errcode"
	"sensorhub-go/services/sensors/internal/consts"
	"sensorhub-go/types"
	"sensorhub-go/x/timex"
)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

// Option configures the service before it starts.
type Option func(s *service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger.With(slog.String("service", "sensors"))
	}
}

// WithWorkerConfig overrides measurement worker timings.
func WithWorkerConfig(cfg WorkerConfig) Option {
	return func(s *service) { s.workerCfg = cfg }
}

// Run starts the sensors service and blocks until ctx is cancelled. It
// listens for retained JSON config on "config/sensors", registers sensors
// through the builder registry, and publishes descriptors, state, and values.
func Run(ctx context.Context, conn *bus.Connection, i2cFactory I2CBusFactory, opts ...Option) {
	s := &service{
		conn:       conn,
		i2cFactory: i2cFactory,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers:    map[string]*measureWorker{},
		sensors:    map[string]*sensorEntry{},
		list:       newSensorList(),
		results:    make(chan Result, 32),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loop(ctx)
}

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

type sensorEntry struct {
	adaptor Adaptor
	handle  int
	busID   string
	fifo    *batchFIFO

	active    bool
	periodUs  int32
	latencyUs int32
	nextDue   time.Time
	flushDue  time.Time
}

type service struct {
	conn       *bus.Connection
	i2cFactory I2CBusFactory
	logger     *slog.Logger
	workerCfg  WorkerConfig

	workers map[string]*measureWorker
	sensors map[string]*sensorEntry
	list    *sensorList

	timer *time.Timer

	// Results fan-in
	results chan Result
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{consts.TokConfig, consts.TokSensors})
	ctrlSub := s.conn.Subscribe(bus.Topic{consts.TokSensors, consts.TokSensor, "+", "+", consts.TokControl, "+"})
	listSub := s.conn.Subscribe(bus.Topic{consts.TokSensors, consts.TokList, "get"})
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)
	defer s.conn.Unsubscribe(listSub)

	s.publishState("idle", "awaiting_config", nil)

	s.timer = time.NewTimer(time.Hour)
	if !s.timer.Stop() {
		drainTimer(s.timer)
	}

	for {
		if next := s.earliestDue(); next.IsZero() {
			resetTimer(s.timer, time.Hour)
		} else {
			resetTimer(s.timer, time.Until(next))
		}

		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			var cfg types.SensorsConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				s.logger.Error("config decode failed", slog.Any("error", err))
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			if err := s.applyConfig(ctx, cfg); err != nil {
				s.logger.Error("config apply failed", slog.Any("error", err))
				s.publishState("error", "apply_config_failed", err)
				continue
			}
			s.publishState("ready", "configured", nil)

		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)

		case msg := <-listSub.Channel():
			s.conn.Reply(msg, s.list.Enumerate(), false)

		case <-s.timer.C:
			s.onTick(time.Now())

		case r := <-s.results:
			s.handleResult(r)
		}
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func (s *service) applyConfig(ctx context.Context, cfg types.SensorsConfig) error {
	seen := map[string]struct{}{}

	for i := range cfg.Sensors {
		c := &cfg.Sensors[i]
		seen[c.ID] = struct{}{}

		// Simple idempotence: a sensor already registered keeps its state.
		if _, exists := s.sensors[c.ID]; exists {
			continue
		}

		b, ok := builderFor(c.Type)
		if !ok {
			s.logger.Warn("no builder for sensor type",
				slog.String("sensor", c.ID), slog.String("type", c.Type))
			continue
		}

		in := BuildInput{Ctx: ctx, Buses: s.i2cFactory, SensorID: c.ID, Type: c.Type, Params: c.Params}
		in.BusRef.Type = c.BusRef.Type
		in.BusRef.ID = c.BusRef.ID

		out, err := b.Build(in)
		if err != nil {
			s.logger.Warn("sensor build failed",
				slog.String("sensor", c.ID), slog.Any("error", err))
			continue
		}

		desc := out.Adaptor.Descriptor()
		handle, err := s.list.Add(c.ID, desc)
		if err != nil {
			s.logger.Warn("sensor rejected from list",
				slog.String("sensor", c.ID), slog.String("code", string(errcode.Of(err))))
			continue
		}

		if _, ok := s.workers[out.BusID]; !ok {
			w := NewWorker(s.workerCfg)
			w.Start(ctx)
			go s.forwardResults(ctx, w)
			s.workers[out.BusID] = w
		}

		ent := &sensorEntry{
			adaptor: out.Adaptor,
			handle:  handle,
			busID:   out.BusID,
			fifo:    newBatchFIFO(desc.FIFOMaxCount, desc.FIFOReserveCount),
		}
		s.sensors[c.ID] = ent

		s.pubRet(s.sensorTopic(desc.Type, handle, consts.TokInfo),
			ListEntry{Handle: handle, SensorID: c.ID, Descriptor: desc})
		s.pubRet(s.sensorTopic(desc.Type, handle, consts.TokState),
			types.SensorStatus{Link: types.LinkUp, TS: timex.NowMs()})

		// Initial rate: explicit config wins, otherwise the builder default.
		periodUs := c.RateUs
		if periodUs == 0 && out.SampleEvery > 0 {
			periodUs = int32(out.SampleEvery / time.Microsecond)
		}
		if periodUs > 0 {
			granted, _ := NegotiateRate(desc, periodUs)
			s.activate(ent, granted)
		}

		s.logger.Info("sensor registered",
			slog.String("sensor", c.ID),
			slog.Int("handle", handle),
			slog.String("name", desc.Name),
			slog.String("vendor", desc.Vendor))
	}

	// Tidy-up: withdraw sensors no longer in config.
	for id, ent := range s.sensors {
		if _, ok := seen[id]; ok {
			continue
		}
		desc := ent.adaptor.Descriptor()
		s.pubRet(s.sensorTopic(desc.Type, ent.handle, consts.TokInfo), nil)
		s.pubRet(s.sensorTopic(desc.Type, ent.handle, consts.TokState),
			types.SensorStatus{Link: types.LinkDown, TS: timex.NowMs()})
		s.list.Remove(id)
		delete(s.sensors, id)
		s.logger.Info("sensor withdrawn", slog.String("sensor", id))
	}

	return nil
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

func (s *service) handleControl(msg *bus.Message) {
	// sensors/sensor/<type>/<handle:int>/control/<verb>
	if len(msg.Topic) < 6 {
		return
	}
	handle, ok := asInt(msg.Topic[3])
	if !ok {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}
	entInfo, ok := s.list.Get(handle)
	if !ok {
		s.replyErr(msg, errcode.UnknownSensor)
		return
	}
	ent := s.sensors[entInfo.SensorID]
	if ent == nil {
		s.replyErr(msg, errcode.UnknownSensor)
		return
	}
	verb, _ := msg.Topic[5].(string)
	desc := entInfo.Descriptor

	switch verb {
	case consts.CtrlActivate:
		periodUs := parsePeriodUs(msg.Payload)
		if periodUs <= 0 {
			periodUs = desc.MinDelayUs
		}
		granted, _ := NegotiateRate(desc, periodUs)
		s.activate(ent, granted)
		s.reply(msg, types.RateReply{OK: true, PeriodUs: granted})

	case consts.CtrlDeactivate:
		s.deactivate(ent)
		s.reply(msg, types.OKReply{OK: true})

	case consts.CtrlSetRate:
		periodUs := parsePeriodUs(msg.Payload)
		if periodUs <= 0 {
			s.replyErr(msg, errcode.InvalidParams)
			return
		}
		granted, adjusted := NegotiateRate(desc, periodUs)
		ent.periodUs = granted
		ent.latencyUs = parseLatencyUs(msg.Payload)
		if ent.active {
			s.bumpNext(ent, time.Now())
			s.armFlush(ent, time.Now())
		}
		s.reply(msg, types.RateReply{OK: true, PeriodUs: granted, Adjusted: adjusted})

	case consts.CtrlReadNow:
		if !ent.active {
			s.replyErr(msg, errcode.SensorInactive)
			return
		}
		if s.submitMeasure(entInfo.SensorID, ent, true) {
			s.bumpNext(ent, time.Now())
			s.reply(msg, types.OKReply{OK: true})
		} else {
			s.replyErr(msg, errcode.Busy)
		}

	case consts.CtrlFlush:
		n := s.flush(entInfo.SensorID, ent)
		s.reply(msg, types.FlushReply{OK: true, Flushed: n})

	default:
		if res, err := ent.adaptor.Control(verb, msg.Payload); err == nil {
			s.reply(msg, types.ControlReply{OK: true, Result: res})
		} else {
			s.replyErr(msg, err)
		}
	}
}

// -----------------------------------------------------------------------------
// Scheduling
// -----------------------------------------------------------------------------

func (s *service) activate(ent *sensorEntry, periodUs int32) {
	ent.active = true
	ent.periodUs = periodUs
	ent.nextDue = time.Now()
	s.armFlush(ent, time.Now())
}

// armFlush schedules the max-report-latency flush, or clears it when the
// sensor has no latency budget or no FIFO to hold readings back.
func (s *service) armFlush(ent *sensorEntry, from time.Time) {
	if ent.latencyUs > 0 && !ent.fifo.Direct() {
		ent.flushDue = from.Add(timex.FromMicros(int64(ent.latencyUs)))
	} else {
		ent.flushDue = time.Time{}
	}
}

func (s *service) deactivate(ent *sensorEntry) {
	ent.active = false
	ent.nextDue = time.Time{}
	ent.flushDue = time.Time{}
}

func (s *service) bumpNext(ent *sensorEntry, from time.Time) {
	ent.nextDue = from.Add(timex.FromMicros(int64(ent.periodUs)))
}

func (s *service) earliestDue() time.Time {
	var min time.Time
	for _, ent := range s.sensors {
		if !ent.active {
			continue
		}
		for _, t := range []time.Time{ent.nextDue, ent.flushDue} {
			if !t.IsZero() && (min.IsZero() || t.Before(min)) {
				min = t
			}
		}
	}
	return min
}

func (s *service) onTick(now time.Time) {
	for id, ent := range s.sensors {
		if !ent.active {
			continue
		}
		if !ent.nextDue.IsZero() && !now.Before(ent.nextDue) {
			s.submitMeasure(id, ent, false)
			s.bumpNext(ent, now)
		}
		if !ent.flushDue.IsZero() && !now.Before(ent.flushDue) {
			s.flush(id, ent)
			s.armFlush(ent, now)
		}
	}
}

func (s *service) submitMeasure(id string, ent *sensorEntry, prio bool) bool {
	w := s.workers[ent.busID]
	if w == nil {
		return false
	}
	return w.Submit(MeasureReq{ID: id, Adaptor: ent.adaptor, Prio: prio})
}

func (s *service) forwardResults(ctx context.Context, w *measureWorker) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-w.Results():
			select {
			case s.results <- r:
			case <-ctx.Done():
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

func (s *service) handleResult(r Result) {
	ent, ok := s.sensors[r.ID]
	if !ok {
		return
	}
	desc := ent.adaptor.Descriptor()
	now := timex.NowMs()

	if r.Err != nil {
		s.pubRet(s.sensorTopic(desc.Type, ent.handle, consts.TokState),
			types.SensorStatus{Link: types.LinkDegraded, TS: now, Error: string(errcode.Of(r.Err))})
		s.logger.Warn("measurement failed",
			slog.String("sensor", r.ID), slog.Any("error", r.Err))
		return
	}

	for _, rd := range r.Sample {
		if ent.fifo.Direct() {
			s.publishReading(desc.Type, ent.handle, rd)
			continue
		}
		ent.fifo.Push(rd)
	}
	if ent.fifo.Full() {
		s.flush(r.ID, ent)
	}

	s.pubRet(s.sensorTopic(desc.Type, ent.handle, consts.TokState),
		types.SensorStatus{Link: types.LinkUp, TS: now})
}

// flush drains the sensor's batch buffer onto the bus and returns how many
// readings were published.
func (s *service) flush(id string, ent *sensorEntry) int {
	desc := ent.adaptor.Descriptor()
	batch := ent.fifo.Flush()
	for _, rd := range batch {
		s.publishReading(desc.Type, ent.handle, rd)
	}
	return len(batch)
}

func (s *service) publishReading(t types.Type, handle int, rd Reading) {
	s.conn.Publish(s.conn.NewMessage(
		s.sensorTopic(t, handle, consts.TokValue),
		rd.Payload,
		false,
	))
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (s *service) sensorTopic(t types.Type, handle int, rest ...bus.Token) bus.Topic {
	base := bus.Topic{consts.TokSensors, consts.TokSensor, string(t), handle}
	return append(base, rest...)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

func (s *service) publishState(level, status string, err error) {
	st := types.HubState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(bus.Topic{consts.TokSensors, consts.TokState}, st, true))
}

func (s *service) reply(req *bus.Message, payload any) {
	if len(req.ReplyTo) == 0 {
		return
	}
	s.conn.Reply(req, payload, false)
}

func (s *service) replyErr(req *bus.Message, e error) {
	s.reply(req, types.ErrorReply{OK: false, Error: string(errcode.Of(e))})
}

func parsePeriodUs(p any) int32 {
	return parseIntField(p, "period_us")
}

func parseLatencyUs(p any) int32 {
	return parseIntField(p, "max_latency_us")
}

func parseIntField(p any, key string) int32 {
	if m, ok := p.(map[string]any); ok {
		switch v := m[key].(type) {
		case int:
			return int32(v)
		case int32:
			return v
		case int64:
			return int32(v)
		case float64:
			return int32(v)
		}
	}
	return 0
}

func asInt(t any) (int, bool) {
	switch v := t.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		// Accept maps, structs, numbers… by marshaling then decoding to T.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
