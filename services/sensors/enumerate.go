// services/sensors/enumerate.go
package sensors

import (
	"context"

	"sensorhub-go/types"
)

// Enumerate builds the published sensor list for a configuration without
// starting the service: every configured sensor is built through the
// registry, validated, capped at the platform limit, and handed out in
// handle order. Tools use this to answer "what would this hub publish".
func Enumerate(ctx context.Context, cfg types.SensorsConfig, buses I2CBusFactory) ([]ListEntry, error) {
	list := newSensorList()
	for i := range cfg.Sensors {
		c := &cfg.Sensors[i]
		b, ok := builderFor(c.Type)
		if !ok {
			continue
		}
		in := BuildInput{Ctx: ctx, Buses: buses, SensorID: c.ID, Type: c.Type, Params: c.Params}
		in.BusRef.Type = c.BusRef.Type
		in.BusRef.ID = c.BusRef.ID
		out, err := b.Build(in)
		if err != nil {
			return nil, err
		}
		if _, err := list.Add(c.ID, out.Adaptor.Descriptor()); err != nil {
			return nil, err
		}
	}
	return list.Enumerate(), nil
}
