// services/sensors/list.go
package sensors

import (
	"sort"

	"sensorhub-go/errcode"
	"sensorhub-go/services/sensors/internal/consts"
	"sensorhub-go/types"
)

// MaxNumSensors is the most sensors the hub will publish at once.
const MaxNumSensors = consts.MaxNumSensors

// ListEntry is one published sensor: its handle plus the descriptor the
// framework sees.
type ListEntry struct {
	Handle     int              `json:"handle"`
	SensorID   string           `json:"sensor_id"`
	Descriptor types.Descriptor `json:"descriptor"`
}

// sensorList assigns handles and enforces the platform sensor limit.
// Handles are stable for the life of the service; a sensor removed from
// config does not free its handle for reuse.
type sensorList struct {
	entries    map[int]ListEntry
	byID       map[string]int
	nextHandle int
}

func newSensorList() *sensorList {
	return &sensorList{
		entries: map[int]ListEntry{},
		byID:    map[string]int{},
	}
}

// Add validates the descriptor, enforces MaxNumSensors, and returns the
// assigned handle. An invalid descriptor is an authoring defect in the
// sensor build, reported as BadDescriptor.
func (l *sensorList) Add(sensorID string, d types.Descriptor) (int, error) {
	if _, dup := l.byID[sensorID]; dup {
		return 0, errcode.BusInUse
	}
	if err := d.Validate(); err != nil {
		return 0, err
	}
	if len(l.entries) >= consts.MaxNumSensors {
		return 0, errcode.TooManySensors
	}
	h := l.nextHandle
	l.nextHandle++
	l.entries[h] = ListEntry{Handle: h, SensorID: sensorID, Descriptor: d}
	l.byID[sensorID] = h
	return h, nil
}

// Remove drops a sensor from the list. The handle is not reused.
func (l *sensorList) Remove(sensorID string) (int, bool) {
	h, ok := l.byID[sensorID]
	if !ok {
		return 0, false
	}
	delete(l.byID, sensorID)
	delete(l.entries, h)
	return h, true
}

// Get looks up an entry by handle.
func (l *sensorList) Get(handle int) (ListEntry, bool) {
	e, ok := l.entries[handle]
	return e, ok
}

// HandleOf looks up the handle for a sensor id.
func (l *sensorList) HandleOf(sensorID string) (int, bool) {
	h, ok := l.byID[sensorID]
	return h, ok
}

// Enumerate returns the published sensor list in ascending handle order.
func (l *sensorList) Enumerate() []ListEntry {
	out := make([]ListEntry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func (l *sensorList) Len() int { return len(l.entries) }
