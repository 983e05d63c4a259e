package domain

// SensorDevice is a device record as reported by the sensor's REST view,
// already normalized from whichever historical payload shape the sensor used.
type SensorDevice struct {
	Identifier string
	LastSeen   int64
	Names      []string
	NameCount  int
}
