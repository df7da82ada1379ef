package sniff

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Placeholder rendered on the console for optional fields that are absent.
const fieldPlaceholder = "-"

// timestampLayout is ISO-8601 with the local UTC offset, second precision.
const timestampLayout = "2006-01-02T15:04:05-07:00"

// Timestamp renders t in the sniffer's timestamp format.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// FormatManufacturerData renders manufacturer data as
// 0x<company-id>:<hex payload> pairs joined by commas, in delivery order.
// Empty input renders as the placeholder.
func FormatManufacturerData(data []ManufacturerData) string {
	if len(data) == 0 {
		return fieldPlaceholder
	}
	parts := make([]string, 0, len(data))
	for _, m := range data {
		parts = append(parts, fmt.Sprintf("0x%04x:%s", m.CompanyID, hex.EncodeToString(m.Payload)))
	}
	return strings.Join(parts, ",")
}

// FormatServices renders service UUIDs lexicographically sorted and joined
// by commas. The sorted order is stable regardless of input order. Empty
// input renders as the placeholder.
func FormatServices(uuids []string) string {
	if len(uuids) == 0 {
		return fieldPlaceholder
	}
	sorted := make([]string, len(uuids))
	copy(sorted, uuids)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Record is one accepted detection, normalized for output. Name is empty
// when unknown; TxPower is nil when not advertised. Manufacturer and
// Services carry the formatted strings shared by console and sinks.
type Record struct {
	Timestamp    string
	Address      string
	Name         string
	RSSI         int
	TxPower      *int
	Manufacturer string
	Services     string
}

// NewRecord projects an advertisement into a Record stamped with now.
func NewRecord(now time.Time, adv *Advertisement) Record {
	return Record{
		Timestamp:    Timestamp(now),
		Address:      adv.Address,
		Name:         adv.DisplayName(),
		RSSI:         adv.RSSI,
		TxPower:      adv.TxPower,
		Manufacturer: FormatManufacturerData(adv.Manufacturer),
		Services:     FormatServices(adv.ServiceUUIDs),
	}
}

// ConsoleLine renders the fixed-layout detection line.
func (r Record) ConsoleLine() string {
	name := r.Name
	if name == "" {
		name = fieldPlaceholder
	}
	tx := fieldPlaceholder
	if r.TxPower != nil {
		tx = strconv.Itoa(*r.TxPower)
	}
	return fmt.Sprintf("[%s] %-20s RSSI=%4d dBm  TX=%3s  Name=%s  Manu=%s  Services=%s",
		r.Timestamp, r.Address, r.RSSI, tx, name, r.Manufacturer, r.Services)
}
