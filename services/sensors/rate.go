// services/sensors/rate.go
package sensors

import (
	"strconv"

	"sensorhub-go/errcode"
	"sensorhub-go/services/sensors/internal/consts"
	"sensorhub-go/types"
	"sensorhub-go/x/mathx"
)

// NegotiateRate clamps a client-requested sampling period to what the sensor
// actually supports: never faster than the per-type floor or the descriptor's
// minDelay, never slower than its maxDelay. The granted period in
// microseconds is returned alongside whether the request had to be adjusted.
func NegotiateRate(d types.Descriptor, requestedUs int32) (grantedUs int32, adjusted bool) {
	floor := d.MinDelayUs
	if typeFloor := consts.MinDelayFor(d.Type); typeFloor > floor {
		floor = typeFloor
	}
	ceil := d.MaxDelayUs
	if ceil < floor {
		ceil = floor
	}
	granted := mathx.Clamp(requestedUs, floor, ceil)
	return granted, granted != requestedUs
}

// CheckRate validates a requested period without adjusting it.
func CheckRate(d types.Descriptor, requestedUs int32) error {
	if requestedUs <= 0 {
		return errcode.InvalidParams
	}
	if granted, adjusted := NegotiateRate(d, requestedUs); adjusted {
		return &errcode.E{
			C:   errcode.RateOutOfRange,
			Msg: d.Name + ": nearest supported period is " + strconv.Itoa(int(granted)) + "us",
		}
	}
	return nil
}
