package db

import (
	"os"
	"strings"
)

func ReportsTableName() string {
	return strings.TrimSpace(os.Getenv("REPORTS_TABLE"))
}

func StatusTopicARN() string {
	return strings.TrimSpace(os.Getenv("REPORT_STATUS_TOPIC_ARN"))
}
