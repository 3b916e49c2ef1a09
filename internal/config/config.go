package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"ga4-report-service/internal/ga4"
)

// Defaults mirror the original reporting job. They stay overridable through
// the environment so staging can point at another property without a deploy.
const (
	DefaultKeyFile    = "ga4account.json"
	DefaultPropertyID = "469101596"
	DefaultStartDate  = "2023-01-01"
	DefaultEndDate    = "today"
	DefaultOrderBy    = "screenPageViews"
)

var (
	DefaultDimensions = []string{"pagePath", "pageTitle", "city", "country", "browser", "operatingSystem", "deviceCategory"}
	DefaultMetrics    = []string{"screenPageViews", "sessions", "totalUsers", "newUsers", "bounceRate", "averageSessionDuration"}
)

// ParameterClient is the slice of the SSM API config resolution needs.
type ParameterClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Config is built once at startup and passed into the fetch path explicitly;
// nothing downstream reads the environment for report parameters.
type Config struct {
	CredentialsFile string
	PropertyID      string

	StartDate     string
	EndDate       string
	Dimensions    []string
	Metrics       []string
	OrderByMetric string
	Limit         int64
}

// Load resolves the config from the environment. When GA4_PROPERTY_ID is
// unset and GA4_PROPERTY_ID_PARAM names an SSM parameter, the property id is
// read from Parameter Store; an explicit env value always wins.
func Load(ctx context.Context, params ParameterClient) (*Config, error) {
	cfg := &Config{
		CredentialsFile: envOr("GOOGLE_APPLICATION_CREDENTIALS", DefaultKeyFile),
		PropertyID:      strings.TrimSpace(os.Getenv("GA4_PROPERTY_ID")),
		StartDate:       envOr("REPORT_START_DATE", DefaultStartDate),
		EndDate:         envOr("REPORT_END_DATE", DefaultEndDate),
		Dimensions:      envListOr("REPORT_DIMENSIONS", DefaultDimensions),
		Metrics:         envListOr("REPORT_METRICS", DefaultMetrics),
		OrderByMetric:   envOr("REPORT_ORDER_BY_METRIC", DefaultOrderBy),
		Limit:           ga4.DefaultLimit,
	}

	if v := strings.TrimSpace(os.Getenv("REPORT_ROW_LIMIT")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid REPORT_ROW_LIMIT %q", v)
		}
		cfg.Limit = n
	}

	if cfg.PropertyID == "" {
		if name := strings.TrimSpace(os.Getenv("GA4_PROPERTY_ID_PARAM")); name != "" && params != nil {
			out, err := params.GetParameter(ctx, &ssm.GetParameterInput{
				Name:           aws.String(name),
				WithDecryption: aws.Bool(true),
			})
			if err != nil {
				return nil, fmt.Errorf("resolve %s from ssm: %w", name, err)
			}
			cfg.PropertyID = strings.TrimSpace(aws.ToString(out.Parameter.Value))
		}
	}
	if cfg.PropertyID == "" {
		cfg.PropertyID = DefaultPropertyID
	}

	return cfg, nil
}

// ReportQuery builds the per-invocation query from the loaded config.
func (c *Config) ReportQuery() ga4.ReportQuery {
	return ga4.ReportQuery{
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		Dimensions:    c.Dimensions,
		Metrics:       c.Metrics,
		OrderByMetric: c.OrderByMetric,
		Limit:         c.Limit,
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envListOr(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
