package etl

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"ga4-report-service/internal/db"
	"ga4-report-service/internal/report"
	"ga4-report-service/internal/sink"
)

// ArchiveRow matches the Athena table columns over the report archive. One
// row per flattened report record; metric values stay strings, as stored.
type ArchiveRow struct {
	ReportDate string `parquet:"name=report_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"` // YYYY-MM-DD
	RowIndex   int32  `parquet:"name=row_index, type=INT32"`

	PagePath        string `parquet:"name=page_path, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	PageTitle       string `parquet:"name=page_title, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	City            string `parquet:"name=city, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Country         string `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Browser         string `parquet:"name=browser, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	OperatingSystem string `parquet:"name=operating_system, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	DeviceCategory  string `parquet:"name=device_category, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`

	ScreenPageViews        string `parquet:"name=screen_page_views, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Sessions               string `parquet:"name=sessions, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	TotalUsers             string `parquet:"name=total_users, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	NewUsers               string `parquet:"name=new_users, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	BounceRate             string `parquet:"name=bounce_rate, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	AverageSessionDuration string `parquet:"name=average_session_duration, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

type Archiver struct {
	ddb *dynamodb.Client
	s3  *s3.Client
}

func NewArchiver(cfg aws.Config) *Archiver {
	return &Archiver{
		ddb: dynamodb.NewFromConfig(cfg),
		s3:  s3.NewFromConfig(cfg),
	}
}

type snapshotItem struct {
	Data        string `dynamodbav:"Data"`
	RowCount    int    `dynamodbav:"RowCount"`
	GeneratedAt string `dynamodbav:"GeneratedAt"`
}

// Handle is triggered by EventBridge schedule.
//
// Behavior:
// - Read the latest report snapshot from REPORTS_TABLE
// - Decode the stored JSON back into flat records
// - Write one Parquet file under:
//     ga4_reports/dt=YYYY-MM-DD/part-<rand>.parquet
//
// Env:
// - REPORTS_TABLE (required)
// - ANALYTICS_BUCKET (required)
// - GA4_REPORTS_PREFIX (default "ga4_reports/")
func (a *Archiver) Handle(ctx context.Context, _ events.CloudWatchEvent) (map[string]any, error) {
	table := db.ReportsTableName()
	if table == "" {
		return nil, fmt.Errorf("missing env REPORTS_TABLE")
	}

	bucket := strings.TrimSpace(os.Getenv("ANALYTICS_BUCKET"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env ANALYTICS_BUCKET")
	}

	prefix := strings.TrimSpace(os.Getenv("GA4_REPORTS_PREFIX"))
	if prefix == "" {
		prefix = "ga4_reports/"
	}

	out, err := a.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: sink.ReportPK()},
			"SK": &ddbtypes.AttributeValueMemberS{Value: "SNAPSHOT#LATEST"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get report snapshot: %w", err)
	}
	if out.Item == nil || len(out.Item) == 0 {
		return map[string]any{"ok": true, "archived": 0, "reason": "no snapshot stored yet"}, nil
	}

	var snap snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot item: %w", err)
	}

	var records []report.FlatRecord
	if err := json.Unmarshal([]byte(snap.Data), &records); err != nil {
		return nil, fmt.Errorf("decode snapshot json: %w", err)
	}
	if len(records) == 0 {
		return map[string]any{"ok": true, "archived": 0, "reason": "snapshot is empty"}, nil
	}

	dt := archiveDate(snap.GeneratedAt, time.Now())
	rows := make([]ArchiveRow, 0, len(records))
	for i, rec := range records {
		rows = append(rows, archiveRow(i, dt, rec))
	}

	key := fmt.Sprintf("%sdt=%s/part-%s.parquet", ensureTrailingSlash(prefix), dt, randHex(8))
	if err := a.writeParquetToS3(ctx, bucket, key, rows); err != nil {
		return nil, fmt.Errorf("write parquet for dt=%s: %w", dt, err)
	}

	return map[string]any{
		"ok":       true,
		"archived": len(rows),
		"dt":       dt,
		"bucket":   bucket,
		"key":      key,
	}, nil
}

// archiveRow maps one flat record onto the fixed archive columns. Dimensions
// or metrics outside the configured report simply stay out of the archive.
func archiveRow(idx int, dt string, rec report.FlatRecord) ArchiveRow {
	return ArchiveRow{
		ReportDate: dt,
		RowIndex:   int32(idx),

		PagePath:        rec.Dimensions["pagePath"],
		PageTitle:       rec.Dimensions["pageTitle"],
		City:            rec.Dimensions["city"],
		Country:         rec.Dimensions["country"],
		Browser:         rec.Dimensions["browser"],
		OperatingSystem: rec.Dimensions["operatingSystem"],
		DeviceCategory:  rec.Dimensions["deviceCategory"],

		ScreenPageViews:        rec.Metrics["screenPageViews"],
		Sessions:               rec.Metrics["sessions"],
		TotalUsers:             rec.Metrics["totalUsers"],
		NewUsers:               rec.Metrics["newUsers"],
		BounceRate:             rec.Metrics["bounceRate"],
		AverageSessionDuration: rec.Metrics["averageSessionDuration"],
	}
}

// archiveDate derives the partition date from the snapshot's generation time,
// falling back to today when the stored timestamp is unusable.
func archiveDate(generatedAt string, now time.Time) string {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(generatedAt)); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	return now.UTC().Format("2006-01-02")
}

func (a *Archiver) writeParquetToS3(ctx context.Context, bucket, key string, rows []ArchiveRow) error {
	tmpDir := os.TempDir()
	localPath := filepath.Join(tmpDir, "ga4_report_"+randHex(8)+".parquet")

	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return fmt.Errorf("parquet file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(ArchiveRow), 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = 0 // no snappy

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return fmt.Errorf("parquet write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read parquet tmp: %w", err)
	}
	defer func() { _ = os.Remove(localPath) }()

	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("s3 putobject failed: %w", err)
	}
	return nil
}

func ensureTrailingSlash(s string) string {
	if s == "" {
		return ""
	}
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
