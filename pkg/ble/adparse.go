package ble

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"blesniff/pkg/sniff"
)

// AD structure types from the Bluetooth Core Specification Supplement.
const (
	adTypeUUID16Incomplete  = 0x02
	adTypeUUID16Complete    = 0x03
	adTypeUUID32Incomplete  = 0x04
	adTypeUUID32Complete    = 0x05
	adTypeUUID128Incomplete = 0x06
	adTypeUUID128Complete   = 0x07
	adTypeShortLocalName    = 0x08
	adTypeCompleteLocalName = 0x09
	adTypeTxPower           = 0x0a
	adTypeManufacturerData  = 0xff
)

// baseUUIDSuffix expands a 16- or 32-bit UUID to the Bluetooth base form,
// e.g. 0xfffd -> 0000fffd-0000-1000-8000-00805f9b34fb.
const baseUUIDSuffix = "-0000-1000-8000-00805f9b34fb"

// adFields holds the metadata recovered from a raw advertising payload.
type adFields struct {
	LocalName    string
	TxPower      *int
	ServiceUUIDs []string
	Manufacturer []sniff.ManufacturerData
}

// parseADPayload walks the length/type/data structures of a raw advertising
// payload. A zero-length or truncated structure ends the walk; everything
// parsed up to that point is kept. Unknown types are skipped.
func parseADPayload(raw []byte) adFields {
	var fields adFields
	for i := 0; i < len(raw); {
		length := int(raw[i])
		if length == 0 || i+1+length > len(raw) {
			break
		}
		typ := raw[i+1]
		data := raw[i+2 : i+1+length]

		switch typ {
		case adTypeUUID16Incomplete, adTypeUUID16Complete:
			for j := 0; j+2 <= len(data); j += 2 {
				u := binary.LittleEndian.Uint16(data[j:])
				fields.ServiceUUIDs = append(fields.ServiceUUIDs,
					fmt.Sprintf("%08x%s", uint32(u), baseUUIDSuffix))
			}
		case adTypeUUID32Incomplete, adTypeUUID32Complete:
			for j := 0; j+4 <= len(data); j += 4 {
				u := binary.LittleEndian.Uint32(data[j:])
				fields.ServiceUUIDs = append(fields.ServiceUUIDs,
					fmt.Sprintf("%08x%s", u, baseUUIDSuffix))
			}
		case adTypeUUID128Incomplete, adTypeUUID128Complete:
			for j := 0; j+16 <= len(data); j += 16 {
				fields.ServiceUUIDs = append(fields.ServiceUUIDs, uuid128String(data[j:j+16]))
			}
		case adTypeShortLocalName:
			// The complete name wins when both are present.
			if fields.LocalName == "" {
				fields.LocalName = string(data)
			}
		case adTypeCompleteLocalName:
			fields.LocalName = string(data)
		case adTypeTxPower:
			if len(data) >= 1 {
				tx := int(int8(data[0]))
				fields.TxPower = &tx
			}
		case adTypeManufacturerData:
			if len(data) >= 2 {
				payload := make([]byte, len(data)-2)
				copy(payload, data[2:])
				fields.Manufacturer = append(fields.Manufacturer, sniff.ManufacturerData{
					CompanyID: binary.LittleEndian.Uint16(data),
					Payload:   payload,
				})
			}
		}

		i += 1 + length
	}
	return fields
}

// uuid128String renders a 128-bit UUID, little-endian on the air, in
// canonical lowercase form.
func uuid128String(le []byte) string {
	var be [16]byte
	for i := range be {
		be[i] = le[15-i]
	}
	u, err := uuid.FromBytes(be[:])
	if err != nil {
		// Unreachable: FromBytes only rejects wrong lengths.
		return fmt.Sprintf("%x", be)
	}
	return u.String()
}
