package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"ga4-report-service/internal/config"
	"ga4-report-service/internal/db"
	"ga4-report-service/internal/ga4"
	"ga4-report-service/internal/handlers"
	"ga4-report-service/internal/sink"
)

func main() {
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	cfg, err := config.Load(ctx, ssm.NewFromConfig(awsCfg))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// The analytics client is rebuilt per invocation; only the AWS-side
	// clients are reused across invocations.
	newFetcher := func(ctx context.Context) (handlers.ReportFetcher, error) {
		return ga4.NewClient(ctx, cfg.CredentialsFile, cfg.PropertyID)
	}

	s := sink.New(
		dynamodb.NewFromConfig(awsCfg),
		sns.NewFromConfig(awsCfg),
		db.ReportsTableName(),
		db.StatusTopicARN(),
	)

	h := handlers.NewReportHandler(cfg, newFetcher, s)
	lambda.Start(h.Handle)
}
