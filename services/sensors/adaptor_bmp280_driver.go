// services/sensors/adaptor_bmp280_driver.go
package sensors

import (
	"context"
	"time"

	"tinygo.org/x/drivers"

	"sensorhub-go/drivers/bmp280"
	"sensorhub-go/errcode"
	"sensorhub-go/services/sensors/internal/consts"
	"sensorhub-go/types"
	"sensorhub-go/x/timex"
)

func init() { RegisterBuilder("bmp280", bmp280Builder{}) }

type bmp280Builder struct{}

func (bmp280Builder) Build(in BuildInput) (BuildOutput, error) {
	if in.BusRef.Type != "i2c" || in.BusRef.ID == "" {
		return BuildOutput{}, errcode.InvalidParams
	}
	i2c, ok := in.Buses.ByID(in.BusRef.ID)
	if !ok {
		return BuildOutput{}, errcode.UnknownBus
	}
	var p struct {
		Addr int `json:"addr"`
	}
	_ = decodeJSON(in.Params, &p)

	ad, err := NewBMP280Adaptor(in.SensorID, i2c, uint16(p.Addr))
	if err != nil {
		return BuildOutput{}, err
	}
	return BuildOutput{
		Adaptor:     ad,
		BusID:       in.BusRef.ID,
		SampleEvery: timex.FromMicros(consts.UncaliPressureMinDelayUs),
	}, nil
}

type bmp280Adaptor struct {
	id  string
	dev bmp280.Device
}

// NewBMP280Adaptor probes and configures a BMP280 on the given bus and wraps
// it as the platform's uncalibrated pressure sensor.
func NewBMP280Adaptor(id string, bus drivers.I2C, addr uint16) (Adaptor, error) {
	if addr == 0 {
		addr = bmp280.Address
	}
	dev := bmp280.New(bus)
	if err := dev.Configure(bmp280.Config{
		Address:        addr,
		PollInterval:   5 * time.Millisecond,
		CollectTimeout: 250 * time.Millisecond,
		TriggerHint:    45 * time.Millisecond,
	}); err != nil {
		return nil, err
	}
	return &bmp280Adaptor{id: id, dev: dev}, nil
}

func (a *bmp280Adaptor) ID() string { return a.id }

func (a *bmp280Adaptor) Descriptor() types.Descriptor {
	return consts.UncaliPressure()
}

func (a *bmp280Adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	if err := a.dev.Trigger(); err != nil {
		return 0, err
	}
	return a.dev.TriggerHint(), nil
}

func (a *bmp280Adaptor) Collect(ctx context.Context) (Sample, error) {
	var s bmp280.Sample
	if err := a.dev.Collect(&s); err != nil {
		if err == bmp280.ErrNotReady {
			return nil, ErrNotReady
		}
		return nil, err
	}
	ts := timex.NowMs()
	return Sample{
		{
			Type:    types.TypeUncaliPressure,
			Payload: types.PressureValue{MilliPa: s.MilliPa, CentiC: s.CentiC, TsMs: ts},
			TsMs:    ts,
		},
	}, nil
}

func (a *bmp280Adaptor) Control(method string, payload any) (any, error) {
	switch method {
	case "reset":
		a.dev.Reset()
		return nil, nil
	}
	return nil, ErrUnsupported
}
