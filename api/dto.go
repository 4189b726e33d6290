// Package api is the HTTP/JSON surface of the ledger: request/response
// shapes live here (the *DTO / *Request / *Response naming below
// follows the convention timeoff's api/dto.go documents), handlers.go
// and server.go do the wiring.
package api

import (
	"time"

	"corebank"
)

// LegRequest is one leg of a transaction-entry request body.
type LegRequest struct {
	AccountNo string `json:"accountNo"`
	Flag string `json:"drCrFlag"`
	Currency string `json:"currency"`
	FcyAmount string `json:"fcyAmount"`
	ExchangeRate string `json:"exchangeRate"`
	LcyAmount string `json:"lcyAmount"`
	Narration string `json:"narration,omitempty"`
}

// TransactionEntryRequest is the POST /transactions/entry body.
type TransactionEntryRequest struct {
	ValueDate string `json:"valueDate"`
	Narration string `json:"narration"`
	UserID string `json:"userId"`
	Legs []LegRequest `json:"legs"`
}

// ActionRequest is the body shared by post/verify/reverse calls.
type ActionRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

// LegDTO is one leg in a transaction response.
type LegDTO struct {
	TranID string `json:"tranId"`
	LineNo int `json:"lineNo"`
	AccountNo string `json:"accountNo"`
	DrCrFlag string `json:"drCrFlag"`
	Currency string `json:"currency"`
	FcyAmount string `json:"fcyAmount"`
	LcyAmount string `json:"lcyAmount"`
	TranStatus string `json:"tranStatus"`
	TranDate string `json:"tranDate"`
	ValueDate string `json:"valueDate"`
	Narration string `json:"narration"`
}

// TransactionResponse is the common shape of entry/post/verify/reverse
// and paged-list responses.
type TransactionResponse struct {
	Base string `json:"base"`
	Legs []LegDTO `json:"legs"`
}

func legToDTO(l corebank.Leg) LegDTO {
	return LegDTO{
		TranID: l.TranID,
		LineNo: l.LineNo,
		AccountNo: l.AccountNo,
		DrCrFlag: string(l.DrCrFlag),
		Currency: l.Currency,
		FcyAmount: l.FcyAmount.String(),
		LcyAmount: l.LcyAmount.String(),
		TranStatus: string(l.TranStatus),
		TranDate: l.TranDate.Format("2006-01-02"),
		ValueDate: l.ValueDate.Format("2006-01-02"),
		Narration: l.Narration,
	}
}

func legsToResponse(base string, legs []corebank.Leg) TransactionResponse {
	dtos := make([]LegDTO, 0, len(legs))
	for _, l := range legs {
		dtos = append(dtos, legToDTO(l))
	}
	return TransactionResponse{Base: base, Legs: dtos}
}

// PagedTransactionsResponse is the GET /transactions?page&size body.
type PagedTransactionsResponse struct {
	Page int `json:"page"`
	Size int `json:"size"`
	Total int `json:"total"`
	Items []TransactionResponse `json:"items"`
}

// ErrorResponse is operator error envelope:
// { success: false, message, timestamp }.
type ErrorResponse struct {
	Success bool `json:"success"`
	Message string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func newErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Success: false, Message: message, Timestamp: time.Now().Format(time.RFC3339)}
}

// ValidationErrorResponse is request-validation envelope:
// { error, field, constraint }.
type ValidationErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field"`
	Constraint string `json:"constraint"`
}

// EODJobResponse is one job's result within an EOD run/batch response.
type EODJobResponse struct {
	JobName string `json:"jobName"`
	EODDate string `json:"eodDate"`
	RecordsProcessed int `json:"recordsProcessed"`
	Status string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

func jobResultToDTO(r corebank.JobResult) EODJobResponse {
	return EODJobResponse{
		JobName: r.JobName,
		EODDate: r.EODDate.Format("2006-01-02"),
		RecordsProcessed: r.RecordsProcessed,
		Status: string(r.Status),
		ErrorMessage: r.ErrorMessage,
	}
}

// EODRunResponse is the POST /admin/run-eod response.
type EODRunResponse struct {
	EODDate string `json:"eodDate"`
	Jobs []EODJobResponse `json:"jobs"`
	FailedAtJob string `json:"failedAtJob,omitempty"`
}

// EODStatusResponse is the GET /admin/eod/status response.
type EODStatusResponse struct {
	SystemDate string `json:"systemDate"`
	CurrentDate string `json:"currentDate"`
	LastEODDate string `json:"lastEodDate"`
	LastEODUser string `json:"lastEodUser"`
}

// BODResponse reports the on-demand BOD promotion run.
type BODResponse struct {
	BusinessDate string `json:"businessDate"`
	PendingBefore int `json:"pendingBefore"`
	PendingAfter int `json:"pendingAfter"`
	ProcessedCount int `json:"processedCount"`
	FailedTranID string `json:"failedTranId,omitempty"`
}
