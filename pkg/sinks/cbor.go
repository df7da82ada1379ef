package sinks

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"blesniff/pkg/sniff"
)

// cborRecord is the on-disk shape of one detection. CBOR maps are
// self-delimiting, so the file is a plain concatenation readable with
// cbor.NewDecoder; absent optionals are omitted rather than nulled.
type cborRecord struct {
	Timestamp    string `cbor:"timestamp"`
	Address      string `cbor:"address"`
	Name         string `cbor:"name,omitempty"`
	RSSI         int    `cbor:"rssi"`
	TxPower      *int   `cbor:"tx_power,omitempty"`
	Manufacturer string `cbor:"manufacturer_data"`
	Services     string `cbor:"service_uuids"`
}

// CBOR appends one CBOR-encoded record per accepted detection.
type CBOR struct {
	file   *os.File
	enc    *cbor.Encoder
	closed bool
}

// NewCBOR opens path for append. Unlike the CSV sink there is no header to
// write; an empty file is a valid empty record stream.
func NewCBOR(path string) (*CBOR, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open cbor log: %w", err)
	}
	return &CBOR{file: file, enc: cbor.NewEncoder(file)}, nil
}

// Write appends one encoded record.
func (c *CBOR) Write(rec sniff.Record) error {
	if c.closed {
		return nil
	}
	err := c.enc.Encode(cborRecord{
		Timestamp:    rec.Timestamp,
		Address:      rec.Address,
		Name:         rec.Name,
		RSSI:         rec.RSSI,
		TxPower:      rec.TxPower,
		Manufacturer: rec.Manufacturer,
		Services:     rec.Services,
	})
	if err != nil {
		return fmt.Errorf("write cbor record: %w", err)
	}
	return nil
}

// Close releases the file. Safe to call more than once.
func (c *CBOR) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.file.Close(); err != nil {
		return fmt.Errorf("close cbor log: %w", err)
	}
	return nil
}
