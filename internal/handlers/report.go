package handlers

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"

	"ga4-report-service/internal/config"
	"ga4-report-service/internal/ga4"
	"ga4-report-service/internal/report"
)

// ReportFetcher runs one report query against the analytics backend.
type ReportFetcher interface {
	RunReport(ctx context.Context, q ga4.ReportQuery) (*ga4.ReportResponse, error)
}

// ReportSink persists the serialized report and announces completion.
type ReportSink interface {
	Store(ctx context.Context, reportJSON string, rowCount int) error
	Notify(ctx context.Context) error
}

// ReportHandler drives the fetch -> flatten -> store -> respond flow. The
// analytics client is built fresh per invocation via newFetcher; the sink
// clients are stateless and live for the life of the Lambda.
type ReportHandler struct {
	cfg        *config.Config
	newFetcher func(ctx context.Context) (ReportFetcher, error)
	sink       ReportSink
}

func NewReportHandler(cfg *config.Config, newFetcher func(ctx context.Context) (ReportFetcher, error), sink ReportSink) *ReportHandler {
	return &ReportHandler{
		cfg:        cfg,
		newFetcher: newFetcher,
		sink:       sink,
	}
}

// Handle ignores all incoming request data on purpose: report parameters are
// fixed at startup, and the endpoint is a trigger, not a query interface.
func (h *ReportHandler) Handle(ctx context.Context, _ events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log.Printf("report: generating report for property %s (%s..%s)",
		h.cfg.PropertyID, h.cfg.StartDate, h.cfg.EndDate)

	fetcher, err := h.newFetcher(ctx)
	if err != nil {
		return h.failure(err)
	}

	resp, err := fetcher.RunReport(ctx, h.cfg.ReportQuery())
	if err != nil {
		return h.failure(err)
	}

	records, err := report.Flatten(resp)
	if err != nil {
		return h.failure(err)
	}

	body, err := report.EncodeJSON(records)
	if err != nil {
		return h.failure(err)
	}

	if err := h.sink.Store(ctx, body, len(records)); err != nil {
		return h.failure(err)
	}
	if err := h.sink.Notify(ctx); err != nil {
		return h.failure(err)
	}

	log.Printf("report: stored snapshot with %d rows", len(records))
	return rawJSONResp(200, body)
}

// failure maps both error kinds the same way: log the full detail, answer 500
// with the detail embedded in a plain-text message.
func (h *ReportHandler) failure(err error) (events.APIGatewayV2HTTPResponse, error) {
	log.Printf("report: %v", err)
	return textResp(500, "report generation failed: "+err.Error())
}
