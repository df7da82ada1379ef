// Package sinks provides the append-only record sinks a scan session can be
// configured with. Every sink opens its target for append on construction,
// owns the handle for the run's lifetime, and treats Write after Close as a
// no-op so late detections cannot race teardown.
package sinks

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"blesniff/pkg/sniff"
)

// csvHeader is the fixed column layout of the CSV log.
var csvHeader = []string{
	"timestamp",
	"address",
	"name",
	"rssi",
	"tx_power",
	"manufacturer_data",
	"service_uuids",
}

// CSV appends one row per accepted detection. The header row is written only
// when the target file is newly created or empty, so re-running against an
// existing log appends without duplicating it.
type CSV struct {
	file   *os.File
	writer *csv.Writer
	closed bool
}

// NewCSV opens path for append and writes the header if the file is empty.
func NewCSV(path string) (*CSV, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open csv log: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat csv log: %w", err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	return &CSV{file: file, writer: writer}, nil
}

// Write appends one data row. Absent name and TX power render as empty
// fields; manufacturer and service strings match the console formatting.
func (c *CSV) Write(rec sniff.Record) error {
	if c.closed {
		return nil
	}

	tx := ""
	if rec.TxPower != nil {
		tx = strconv.Itoa(*rec.TxPower)
	}
	row := []string{
		rec.Timestamp,
		rec.Address,
		rec.Name,
		strconv.Itoa(rec.RSSI),
		tx,
		rec.Manufacturer,
		rec.Services,
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	// Flush per row so the log stays tail-able during a long scan.
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Close flushes and releases the file. Safe to call more than once.
func (c *CSV) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	c.writer.Flush()
	err := c.writer.Error()
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close csv log: %w", err)
	}
	return nil
}
