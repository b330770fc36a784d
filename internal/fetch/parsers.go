package fetch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/f5703swl/swl-web-sdr/internal/devices"
	"github.com/f5703swl/swl-web-sdr/internal/sources"
)

// Parser decodes a response body into a payload.
type Parser func(body io.Reader) (*devices.Payload, error)

// DefaultParsers maps each supported format to its decoder.
func DefaultParsers() map[sources.Format]Parser {
	return map[sources.Format]Parser{
		sources.FormatJSON: ParseJSON,
		sources.FormatCSV:  ParseCSV,
	}
}

// ParseJSON decodes a document whose top-level "devices" key holds the
// device list. Numbers stay as json.Number so string and numeric fields can
// be told apart downstream.
func ParseJSON(body io.Reader) (*devices.Payload, error) {
	var doc struct {
		Devices []devices.Record `json:"devices"`
	}
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &devices.Payload{Devices: doc.Devices}, nil
}

// ParseCSV reads a header row followed by one device per row. Short rows
// leave trailing columns unset.
func ParseCSV(body io.Reader) (*devices.Payload, error) {
	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &devices.Payload{Devices: []devices.Record{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	records := make([]devices.Record, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		rec := make(devices.Record, len(header))
		for i, col := range header {
			if col == "" || i >= len(row) {
				continue
			}
			rec[col] = row[i]
		}
		records = append(records, rec)
	}
	return &devices.Payload{Devices: records}, nil
}
