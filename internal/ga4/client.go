package ga4

import (
	"context"
	"fmt"
	"log"
	"strings"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"
)

// Client wraps the Analytics Data API for one GA4 property.
type Client struct {
	svc        *analyticsdata.Service
	propertyID string
}

// NewClient builds an authenticated client from a service-account key file.
// A failure here (missing file, bad key) is a FetchError like any other
// backend failure.
func NewClient(ctx context.Context, credentialsFile, propertyID string) (*Client, error) {
	credentialsFile = strings.TrimSpace(credentialsFile)
	if credentialsFile == "" {
		return nil, &FetchError{Err: fmt.Errorf("missing credentials file path")}
	}
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return nil, &FetchError{Err: fmt.Errorf("missing GA4 property id")}
	}

	svc, err := analyticsdata.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		log.Printf("ga4: init analytics client: %v", err)
		return nil, &FetchError{Err: fmt.Errorf("init analytics client: %w", err)}
	}

	return &Client{svc: svc, propertyID: propertyID}, nil
}

// RunReport issues the query and converts the columnar API response into the
// API-free ReportResponse. No retry; the first error is the final one.
func (c *Client) RunReport(ctx context.Context, q ReportQuery) (*ReportResponse, error) {
	if err := validateQuery(q); err != nil {
		return nil, &FetchError{Err: err}
	}

	out, err := c.svc.Properties.RunReport("properties/"+c.propertyID, buildRequest(q)).Context(ctx).Do()
	if err != nil {
		log.Printf("ga4: run report for property %s: %v", c.propertyID, err)
		return nil, &FetchError{Err: err}
	}

	return convertResponse(out), nil
}

func validateQuery(q ReportQuery) error {
	if strings.TrimSpace(q.StartDate) == "" || strings.TrimSpace(q.EndDate) == "" {
		return fmt.Errorf("start and end date are required")
	}
	if len(q.Dimensions) == 0 {
		return fmt.Errorf("at least one dimension is required")
	}
	if len(q.Metrics) == 0 {
		return fmt.Errorf("at least one metric is required")
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit must be positive, got %d", q.Limit)
	}
	return nil
}

func buildRequest(q ReportQuery) *analyticsdata.RunReportRequest {
	dims := make([]*analyticsdata.Dimension, 0, len(q.Dimensions))
	for _, name := range q.Dimensions {
		dims = append(dims, &analyticsdata.Dimension{Name: name})
	}

	mets := make([]*analyticsdata.Metric, 0, len(q.Metrics))
	for _, name := range q.Metrics {
		mets = append(mets, &analyticsdata.Metric{Name: name})
	}

	var orderBys []*analyticsdata.OrderBy
	if q.OrderByMetric != "" {
		orderBys = []*analyticsdata.OrderBy{{
			Metric: &analyticsdata.MetricOrderBy{MetricName: q.OrderByMetric},
			Desc:   true,
		}}
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultLimit
	}

	return &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: q.StartDate, EndDate: q.EndDate}},
		Dimensions: dims,
		Metrics:    mets,
		OrderBys:   orderBys,
		Limit:      limit,
	}
}

func convertResponse(out *analyticsdata.RunReportResponse) *ReportResponse {
	resp := &ReportResponse{
		DimensionHeaders: make([]string, 0, len(out.DimensionHeaders)),
		MetricHeaders:    make([]string, 0, len(out.MetricHeaders)),
		Rows:             make([]Row, 0, len(out.Rows)),
	}

	for _, h := range out.DimensionHeaders {
		resp.DimensionHeaders = append(resp.DimensionHeaders, h.Name)
	}
	for _, h := range out.MetricHeaders {
		resp.MetricHeaders = append(resp.MetricHeaders, h.Name)
	}

	for _, r := range out.Rows {
		row := Row{
			DimensionValues: make([]string, 0, len(r.DimensionValues)),
			MetricValues:    make([]string, 0, len(r.MetricValues)),
		}
		for _, v := range r.DimensionValues {
			row.DimensionValues = append(row.DimensionValues, v.Value)
		}
		for _, v := range r.MetricValues {
			row.MetricValues = append(row.MetricValues, v.Value)
		}
		resp.Rows = append(resp.Rows, row)
	}

	return resp
}
