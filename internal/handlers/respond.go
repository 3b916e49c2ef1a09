package handlers

import (
	"github.com/aws/aws-lambda-go/events"
)

func rawJSONResp(status int, body string) (events.APIGatewayV2HTTPResponse, error) {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":                "application/json",
			"access-control-allow-origin": "*",
		},
		Body: body,
	}, nil
}

func textResp(status int, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":                "text/plain; charset=utf-8",
			"access-control-allow-origin": "*",
		},
		Body: msg,
	}, nil
}
