package ga4

// DefaultLimit is the row cap applied when a query does not set one.
const DefaultLimit = 100000

// ReportQuery describes one runReport call. Values are fixed once built;
// EndDate may be the literal token "today", which the Analytics Data API
// resolves server-side.
type ReportQuery struct {
	StartDate     string
	EndDate       string
	Dimensions    []string
	Metrics       []string
	OrderByMetric string // when set, rows come back sorted by this metric, descending
	Limit         int64
}

// Row holds the parallel value lists for a single report row. Positions line
// up with the header lists on ReportResponse.
type Row struct {
	DimensionValues []string
	MetricValues    []string
}

// ReportResponse is the columnar report shape, decoupled from the Analytics
// Data API types so downstream packages never import the API client.
// All values are strings, including numeric metrics.
type ReportResponse struct {
	DimensionHeaders []string
	MetricHeaders    []string
	Rows             []Row
}

// FetchError marks any failure between us and the Analytics backend:
// credential loading, network, or a request the backend rejects.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return "ga4 report fetch failed: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
