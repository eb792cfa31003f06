package consts

import (
	"encoding/json"
	"testing"

	"sensorhub-go/types"
)

func TestSensorLimit(t *testing.T) {
	if MaxNumSensors < 1 {
		t.Fatal("at least one sensor descriptor must fit")
	}
}

func TestMinDelaysPositive(t *testing.T) {
	for _, typ := range []types.Type{
		types.TypeMagnetometer,
		types.TypeOrientation,
		types.TypeAccelerometer,
		types.TypeGyroscope,
		types.TypeUncaliPressure,
	} {
		if MinDelayFor(typ) <= 0 {
			t.Fatalf("non-positive min delay for %s", typ)
		}
	}
	if MinDelayFor(types.Type("bogus")) != 0 {
		t.Fatal("unknown type should have no floor")
	}
}

func TestUncaliPressureDescriptor(t *testing.T) {
	d := UncaliPressure()
	if err := d.Validate(); err != nil {
		t.Fatalf("descriptor fails validation: %v", err)
	}
	if d.MinDelayUs > d.MaxDelayUs {
		t.Fatalf("min delay %d exceeds max delay %d", d.MinDelayUs, d.MaxDelayUs)
	}
	if d.FIFOReserveCount > d.FIFOMaxCount {
		t.Fatalf("fifo reserve %d exceeds fifo max %d", d.FIFOReserveCount, d.FIFOMaxCount)
	}
	if d.Name == "" || d.Vendor == "" {
		t.Fatal("descriptor strings must be non-empty")
	}
	if d.Flags.ReportingMode() != types.FlagContinuousMode {
		t.Fatalf("expected continuous reporting mode, got flags %#x", d.Flags)
	}
}

func TestUncaliPressureValues(t *testing.T) {
	d := UncaliPressure()
	if d.Name != "UNCALI_PRESSURE" || d.Vendor != "Bosch" {
		t.Fatalf("unexpected identity: %q / %q", d.Name, d.Vendor)
	}
	if d.Version != 1 || d.MinDelayUs != 20000 || d.MaxDelayUs != 1000000 {
		t.Fatalf("unexpected delays/version: %+v", d)
	}
	if d.FIFOMaxCount != 0 || d.FIFOReserveCount != 0 {
		t.Fatalf("unexpected fifo sizing: %+v", d)
	}
	if d.Range != 1572.86 || d.Resolution != 0.0016 || d.PowerMA != 0 {
		t.Fatalf("unexpected measurement envelope: %+v", d)
	}
}

// The descriptor must survive the registration wire format unchanged.
func TestDescriptorRoundTrip(t *testing.T) {
	d := UncaliPressure()
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got types.Descriptor
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != d {
		t.Fatalf("round-trip mismatch:\n got %+v\nwant %+v", got, d)
	}
}
