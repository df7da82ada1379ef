// Package ble adapts the tinygo bluetooth stack to the sniffer's discovery
// interface. The core never imports the stack directly; everything it needs
// from a scan result is converted into a sniff.Advertisement here.
package ble

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"blesniff/pkg/sniff"
)

// Scanner implements sniff.Scanner over the platform's default adapter.
type Scanner struct {
	adapter *bluetooth.Adapter
	log     zerolog.Logger

	mu       sync.Mutex
	scanning bool
}

// NewScanner enables the default bluetooth adapter. Enabling fails when the
// platform has no usable radio, which aborts the run before scanning begins.
func NewScanner(log zerolog.Logger) (*Scanner, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth: %w", err)
	}
	return &Scanner{adapter: adapter, log: log}, nil
}

// Start begins scanning. adapter.Scan blocks until StopScan, so it runs on
// its own goroutine; handler is invoked from the stack's callback for every
// received advertisement, in delivery order.
func (s *Scanner) Start(handler func(sniff.Advertisement)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanning {
		return errors.New("scanner already running")
	}
	s.scanning = true

	go func() {
		err := s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			handler(convertResult(result))
		})
		if err != nil {
			s.log.Error().Err(err).Msg("ble scan terminated")
		}
	}()
	return nil
}

// Stop ends scanning. Calling Stop on a scanner that never started, or
// twice, is a no-op.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scanning {
		return nil
	}
	s.scanning = false

	if err := s.adapter.StopScan(); err != nil {
		return fmt.Errorf("stop scan: %w", err)
	}
	return nil
}

// convertResult maps a stack scan result onto the sniffer's event model.
// The AdvertisementPayload interface cannot enumerate advertised service
// UUIDs or the TX power level, so when the backend exposes the raw AD bytes
// those fields are parsed directly; the accessor values are kept as
// fallbacks for backends that return no raw payload.
func convertResult(result bluetooth.ScanResult) sniff.Advertisement {
	adv := sniff.Advertisement{
		Address:   result.Address.String(),
		LocalName: result.AdvertisementPayload.LocalName(),
		RSSI:      int(result.RSSI),
	}

	for _, m := range result.AdvertisementPayload.ManufacturerData() {
		payload := make([]byte, len(m.Data))
		copy(payload, m.Data)
		adv.Manufacturer = append(adv.Manufacturer, sniff.ManufacturerData{
			CompanyID: m.CompanyID,
			Payload:   payload,
		})
	}

	if raw := result.AdvertisementPayload.Bytes(); len(raw) > 0 {
		fields := parseADPayload(raw)
		adv.ServiceUUIDs = fields.ServiceUUIDs
		adv.TxPower = fields.TxPower
		if adv.LocalName == "" {
			adv.LocalName = fields.LocalName
		}
		if len(adv.Manufacturer) == 0 {
			adv.Manufacturer = fields.Manufacturer
		}
	}

	return adv
}
