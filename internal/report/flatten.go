package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ga4-report-service/internal/ga4"
)

// FlatRecord is one report row reshaped from the parallel column arrays into
// keyed maps. Values stay strings exactly as the backend sent them.
type FlatRecord struct {
	Dimensions map[string]string `json:"dimensions"`
	Metrics    map[string]string `json:"metrics"`
}

// TransformError marks a malformed report response: missing header lists or a
// row whose value count does not line up with its headers.
type TransformError struct {
	Err error
}

func (e *TransformError) Error() string {
	return "report transform failed: " + e.Err.Error()
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// Flatten zips header name i with value i for dimensions and metrics
// independently, producing one record per row. Row order is preserved as-is;
// the backend already sorted by the requested metric.
func Flatten(resp *ga4.ReportResponse) ([]FlatRecord, error) {
	if resp == nil {
		return nil, transformErr(fmt.Errorf("nil report response"))
	}
	if len(resp.DimensionHeaders) == 0 && len(resp.MetricHeaders) == 0 {
		return nil, transformErr(fmt.Errorf("report response has no header lists"))
	}

	records := make([]FlatRecord, 0, len(resp.Rows))
	for i, row := range resp.Rows {
		if len(row.DimensionValues) != len(resp.DimensionHeaders) {
			return nil, transformErr(fmt.Errorf("row %d has %d dimension values for %d headers",
				i, len(row.DimensionValues), len(resp.DimensionHeaders)))
		}
		if len(row.MetricValues) != len(resp.MetricHeaders) {
			return nil, transformErr(fmt.Errorf("row %d has %d metric values for %d headers",
				i, len(row.MetricValues), len(resp.MetricHeaders)))
		}

		rec := FlatRecord{
			Dimensions: make(map[string]string, len(resp.DimensionHeaders)),
			Metrics:    make(map[string]string, len(resp.MetricHeaders)),
		}
		for j, name := range resp.DimensionHeaders {
			rec.Dimensions[name] = row.DimensionValues[j]
		}
		for j, name := range resp.MetricHeaders {
			rec.Metrics[name] = row.MetricValues[j]
		}
		records = append(records, rec)
	}

	return records, nil
}

// EncodeJSON renders the records as an indented JSON array with non-ASCII
// characters left unescaped. An empty record list encodes as "[]".
func EncodeJSON(records []FlatRecord) (string, error) {
	if records == nil {
		records = []FlatRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return "", transformErr(fmt.Errorf("encode records: %w", err))
	}

	// Encoder appends a trailing newline the response body does not need.
	return strings.TrimRight(buf.String(), "\n"), nil
}

func transformErr(err error) *TransformError {
	log.Printf("report: %v", err)
	return &TransformError{Err: err}
}
