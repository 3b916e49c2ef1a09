package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"ga4-report-service/internal/etl"
)

func main() {
	lambda.Start(etl.RepairPartitions)
}
