// Package sniff implements the BLE metadata sniffer core: the event model,
// the detection pipeline that turns raw advertisements into console lines and
// log records, and the session controller that owns a scan's lifetime.
package sniff

// ManufacturerData is one vendor-defined advertisement payload, keyed by the
// registered Bluetooth SIG company identifier.
type ManufacturerData struct {
	CompanyID uint16
	Payload   []byte
}

// Advertisement is a single BLE advertisement event as delivered by the radio
// stack. Fields are immutable once delivered; optional fields are zero when
// the advertisement did not carry them.
type Advertisement struct {
	Address      string // opaque device identifier (MAC on most platforms)
	Name         string // device-level name, if the stack knows one
	LocalName    string // name carried in the advertisement itself
	RSSI         int    // dBm
	TxPower      *int   // dBm, nil when not advertised
	Manufacturer []ManufacturerData
	ServiceUUIDs []string
}

// DisplayName resolves the name to report: the device-level name when known,
// otherwise the advertised local name, otherwise empty.
func (a *Advertisement) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.LocalName
}

// Scanner is the discovery primitive consumed by the session controller.
// Start begins delivery of advertisements to handler, asynchronously and in
// the order the stack produced them, until Stop completes. Both calls are
// single-use per scan.
type Scanner interface {
	Start(handler func(Advertisement)) error
	Stop() error
}

// Sink receives one Record per accepted detection. Implementations must
// treat Write after Close as a no-op so late events cannot race teardown.
type Sink interface {
	Write(Record) error
	Close() error
}
