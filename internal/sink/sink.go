package sink

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

const (
	// ReportDocumentID is the fixed identifier of the single snapshot
	// document; each run overwrites the previous one.
	ReportDocumentID = "report"

	// StatusMessage is the literal published after a successful run.
	StatusMessage = "Report processed"
)

// DocumentClient is the slice of the DynamoDB API the sink needs.
type DocumentClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Publisher is the slice of the SNS API the sink needs.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sink writes the serialized report to DynamoDB and announces completion on
// SNS. The two writes are independent side effects; neither is rolled back if
// the other fails.
type Sink struct {
	ddb      DocumentClient
	sns      Publisher
	table    string
	topicARN string
	now      func() time.Time
}

func New(ddb DocumentClient, snsClient Publisher, table, topicARN string) *Sink {
	return &Sink{
		ddb:      ddb,
		sns:      snsClient,
		table:    table,
		topicARN: topicARN,
		now:      time.Now,
	}
}

func ReportPK() string {
	return fmt.Sprintf("REPORT#%s", ReportDocumentID)
}

// Store upserts the snapshot document: the full JSON text plus row count and
// generation time.
func (s *Sink) Store(ctx context.Context, reportJSON string, rowCount int) error {
	if s.table == "" {
		return fmt.Errorf("REPORTS_TABLE is not set")
	}

	_, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"PK":          &types.AttributeValueMemberS{Value: ReportPK()},
			"SK":          &types.AttributeValueMemberS{Value: "SNAPSHOT#LATEST"},
			"Id":          &types.AttributeValueMemberS{Value: ReportDocumentID},
			"Data":        &types.AttributeValueMemberS{Value: reportJSON},
			"RowCount":    &types.AttributeValueMemberN{Value: strconv.Itoa(rowCount)},
			"GeneratedAt": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("store report snapshot: %w", err)
	}
	return nil
}

// Notify publishes the fixed status message. Skipped silently when no topic
// is configured, so local runs work without SNS.
func (s *Sink) Notify(ctx context.Context) error {
	if s.topicARN == "" {
		log.Printf("sink: REPORT_STATUS_TOPIC_ARN not set, skipping status publish")
		return nil
	}

	_, err := s.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(StatusMessage),
	})
	if err != nil {
		return fmt.Errorf("publish report status: %w", err)
	}
	return nil
}
