package recorder

import (
	"context"
	"testing"
	"time"

	"sensorhub-go/bus"
	"sensorhub-go/types"
)

func TestStore_SessionAndBatch(t *testing.T) {
	store := NewStore(":memory:")
	defer store.Close()

	ctx := context.Background()
	sessionID, err := store.CreateSession(ctx, "hub-test", map[string]any{"sensors": 1})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	rows := []Row{
		{SensorType: "uncali_pressure", Handle: 0, TsMs: 1000, Payload: types.PressureValue{MilliPa: 100653000, CentiC: 2508}},
		{SensorType: "uncali_pressure", Handle: 0, TsMs: 1100, Payload: types.PressureValue{MilliPa: 100652000, CentiC: 2507}},
	}
	if err := store.WriteBatch(ctx, sessionID, rows); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := store.WriteBatch(ctx, sessionID, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	n, err := store.CountReadings(ctx, sessionID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestRowFromMessage_Timestamp(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("row-test")
	topic := bus.Topic{"sensors", "sensor", "uncali_pressure", 0, "value"}

	// A payload carrying its own timestamp keeps it.
	msg := conn.NewMessage(topic, types.PressureValue{MilliPa: 100653000, CentiC: 2508, TsMs: 1234}, false)
	row, ok := rowFromMessage(msg)
	if !ok {
		t.Fatal("value message rejected")
	}
	if row.TsMs != 1234 {
		t.Fatalf("TsMs = %d, want producer timestamp 1234", row.TsMs)
	}

	// A bare payload falls back to receive time.
	before := time.Now().UnixMilli()
	row, ok = rowFromMessage(conn.NewMessage(topic, map[string]any{"raw": 1}, false))
	if !ok {
		t.Fatal("value message rejected")
	}
	if row.TsMs < before || row.TsMs > time.Now().UnixMilli() {
		t.Fatalf("TsMs = %d, want receive time", row.TsMs)
	}
}

func TestService_BatchesFromBus(t *testing.T) {
	store := NewStore(":memory:")
	defer store.Close()

	b := bus.NewBus(32)
	svcConn := b.NewConnection("recorder")
	pubConn := b.NewConnection("producer")

	svc := New(store, WithBatchSize(2), WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, svcConn, "hub-test") }()

	// Give the service a moment to open its session and subscribe.
	time.Sleep(50 * time.Millisecond)

	topic := bus.Topic{"sensors", "sensor", "uncali_pressure", 0, "value"}
	for i := 0; i < 2; i++ {
		pubConn.Publish(pubConn.NewMessage(topic,
			types.PressureValue{MilliPa: 100653000, CentiC: 2508}, false))
	}
	// Non-value traffic on the tree must be ignored.
	pubConn.Publish(pubConn.NewMessage(
		bus.Topic{"sensors", "sensor", "uncali_pressure", 0, "state"},
		map[string]any{"link": "up"}, false))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := store.CountReadings(context.Background(), 1)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n == 2 {
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("run: %v", err)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("batch was not written")
}
