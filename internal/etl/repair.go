package etl

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// AthenaClient is the slice of the Athena API the repair job needs.
type AthenaClient interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

type RepairResult struct {
	Ok        bool   `json:"ok"`
	QueryID   string `json:"query_id,omitempty"`
	State     string `json:"state,omitempty"`
	Database  string `json:"database,omitempty"`
	Table     string `json:"table,omitempty"`
	Workgroup string `json:"workgroup,omitempty"`
	Output    string `json:"output,omitempty"`
}

// RepairPartitions registers newly written dt= partitions of the report
// archive with Athena via MSCK REPAIR TABLE, polling until the query settles.
//
// Env:
// - ATHENA_DATABASE (required)
// - ATHENA_TABLE (default "ga4_reports")
// - ATHENA_WORKGROUP (default "primary")
// - ATHENA_OUTPUT (required, s3://bucket/prefix/)
func RepairPartitions(ctx context.Context) (RepairResult, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return RepairResult{Ok: false}, err
	}
	return repairPartitions(ctx, athena.NewFromConfig(cfg), 2*time.Second, 60*time.Second)
}

func repairPartitions(ctx context.Context, ath AthenaClient, pollEvery, timeout time.Duration) (RepairResult, error) {
	database := strings.TrimSpace(os.Getenv("ATHENA_DATABASE"))
	table := strings.TrimSpace(os.Getenv("ATHENA_TABLE"))
	workgroup := strings.TrimSpace(os.Getenv("ATHENA_WORKGROUP"))
	output := strings.TrimSpace(os.Getenv("ATHENA_OUTPUT"))

	if database == "" || output == "" {
		return RepairResult{Ok: false}, fmt.Errorf("missing env: ATHENA_DATABASE and ATHENA_OUTPUT are required")
	}
	if !strings.HasPrefix(output, "s3://") {
		return RepairResult{Ok: false}, fmt.Errorf("ATHENA_OUTPUT must start with s3://")
	}
	if table == "" {
		table = "ga4_reports"
	}
	if workgroup == "" {
		workgroup = "primary"
	}

	q := fmt.Sprintf("MSCK REPAIR TABLE %s;", table)

	startOut, err := ath.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(q),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(database),
		},
		WorkGroup: aws.String(workgroup),
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(output),
		},
	})
	if err != nil {
		return RepairResult{Ok: false}, fmt.Errorf("StartQueryExecution: %w", err)
	}

	qid := aws.ToString(startOut.QueryExecutionId)
	fmt.Printf("repair started: qid=%s db=%s table=%s wg=%s out=%s\n", qid, database, table, workgroup, output)

	// Poll until completion (short timeout)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st, err := ath.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(qid),
		})
		if err != nil {
			return RepairResult{Ok: false, QueryID: qid}, fmt.Errorf("GetQueryExecution: %w", err)
		}
		state := string(st.QueryExecution.Status.State)
		if state == "SUCCEEDED" {
			fmt.Printf("repair succeeded: qid=%s\n", qid)
			return RepairResult{
				Ok:        true,
				QueryID:   qid,
				State:     state,
				Database:  database,
				Table:     table,
				Workgroup: workgroup,
				Output:    output,
			}, nil
		}
		if state == "FAILED" || state == "CANCELLED" {
			reason := ""
			if st.QueryExecution.Status.StateChangeReason != nil {
				reason = *st.QueryExecution.Status.StateChangeReason
			}
			return RepairResult{Ok: false, QueryID: qid, State: state}, fmt.Errorf("repair %s: %s", state, reason)
		}
		time.Sleep(pollEvery)
	}

	return RepairResult{Ok: false, QueryID: qid, State: "TIMEOUT"}, fmt.Errorf("repair timed out waiting for qid=%s", qid)
}
