package sink_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"ga4-report-service/internal/sink"
)

type fakeDocumentClient struct {
	PutItemFn func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	lastInput *dynamodb.PutItemInput
	called    bool
}

func (f *fakeDocumentClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.called = true
	f.lastInput = params
	if f.PutItemFn != nil {
		return f.PutItemFn(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

type fakePublisher struct {
	PublishFn func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	lastInput *sns.PublishInput
	called    bool
}

func (f *fakePublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.called = true
	f.lastInput = params
	if f.PublishFn != nil {
		return f.PublishFn(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

func stringAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	av, ok := item[key].(*types.AttributeValueMemberS)
	if !ok {
		t.Fatalf("expected string attribute %s, got %T", key, item[key])
	}
	return av.Value
}

func TestStore_WritesSnapshotDocument(t *testing.T) {
	ddb := &fakeDocumentClient{}
	s := sink.New(ddb, &fakePublisher{}, "reports-table", "")

	reportJSON := `[{"dimensions": {"pagePath": "/home"}, "metrics": {"sessions": "42"}}]`
	if err := s.Store(context.Background(), reportJSON, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ddb.called {
		t.Fatalf("expected PutItem to be called")
	}
	if got := aws.ToString(ddb.lastInput.TableName); got != "reports-table" {
		t.Fatalf("expected table reports-table, got %s", got)
	}

	item := ddb.lastInput.Item
	if got := stringAttr(t, item, "PK"); got != "REPORT#report" {
		t.Fatalf("unexpected PK: %s", got)
	}
	if got := stringAttr(t, item, "SK"); got != "SNAPSHOT#LATEST" {
		t.Fatalf("unexpected SK: %s", got)
	}
	if got := stringAttr(t, item, "Id"); got != "report" {
		t.Fatalf("unexpected Id: %s", got)
	}
	if got := stringAttr(t, item, "Data"); got != reportJSON {
		t.Fatalf("expected stored data to equal the report json, got %s", got)
	}

	rc, ok := item["RowCount"].(*types.AttributeValueMemberN)
	if !ok || rc.Value != "1" {
		t.Fatalf("unexpected RowCount: %+v", item["RowCount"])
	}

	generatedAt := stringAttr(t, item, "GeneratedAt")
	if _, err := time.Parse(time.RFC3339, generatedAt); err != nil {
		t.Fatalf("GeneratedAt is not RFC3339: %s", generatedAt)
	}
}

func TestStore_MissingTable(t *testing.T) {
	ddb := &fakeDocumentClient{}
	s := sink.New(ddb, &fakePublisher{}, "", "")

	if err := s.Store(context.Background(), "[]", 0); err == nil {
		t.Fatalf("expected error when table is not configured")
	}
	if ddb.called {
		t.Fatalf("PutItem should not be called without a table")
	}
}

func TestStore_WrapsPutError(t *testing.T) {
	cause := errors.New("throttled")
	ddb := &fakeDocumentClient{
		PutItemFn: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, cause
		},
	}
	s := sink.New(ddb, &fakePublisher{}, "reports-table", "")

	err := s.Store(context.Background(), "[]", 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "store report snapshot") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestNotify_PublishesStatusMessage(t *testing.T) {
	pub := &fakePublisher{}
	s := sink.New(&fakeDocumentClient{}, pub, "reports-table", "arn:aws:sns:eu-west-1:123456789012:report-status")

	if err := s.Notify(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pub.called {
		t.Fatalf("expected Publish to be called")
	}
	if got := aws.ToString(pub.lastInput.Message); got != "Report processed" {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := aws.ToString(pub.lastInput.TopicArn); !strings.HasSuffix(got, "report-status") {
		t.Fatalf("unexpected topic: %s", got)
	}
}

func TestNotify_NoTopicConfigured(t *testing.T) {
	pub := &fakePublisher{}
	s := sink.New(&fakeDocumentClient{}, pub, "reports-table", "")

	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(os.Stderr)

	if err := s.Notify(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.called {
		t.Fatalf("Publish should not be called without a topic")
	}
	if !strings.Contains(logged.String(), "skipping status publish") {
		t.Fatalf("expected the skip to be logged, got %q", logged.String())
	}
}

func TestNotify_WrapsPublishError(t *testing.T) {
	cause := errors.New("topic gone")
	pub := &fakePublisher{
		PublishFn: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, cause
		},
	}
	s := sink.New(&fakeDocumentClient{}, pub, "reports-table", "arn:aws:sns:eu-west-1:123456789012:report-status")

	err := s.Notify(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
