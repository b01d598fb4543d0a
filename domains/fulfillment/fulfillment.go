package fulfillment

import "context"

// Request is the subset of the intent engine's fulfillment call we read.
type Request struct {
	ResponseID  string      `json:"responseId"`
	Session     string      `json:"session"`
	QueryResult QueryResult `json:"queryResult"`
}

type QueryResult struct {
	QueryText       string         `json:"queryText"`
	Parameters      map[string]any `json:"parameters"`
	FulfillmentText string         `json:"fulfillmentText"`
	LanguageCode    string         `json:"languageCode"`
	Intent          Intent         `json:"intent"`
}

type Intent struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type Response struct {
	FulfillmentText string `json:"fulfillmentText"`
}

type IFulfillmentUsecase interface {
	Fulfill(ctx context.Context, tenantID string, req Request) Response
}
