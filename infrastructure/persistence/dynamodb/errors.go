package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// retryableCodes are API error codes worth another attempt.
var retryableCodes = map[string]struct{}{
	"ThrottlingException":                    {},
	"ProvisionedThroughputExceededException": {},
	"RequestLimitExceeded":                   {},
	"InternalServerError":                    {},
	"ServiceUnavailable":                     {},
	"TransactionConflictException":           {},
	"TransactionInProgressException":         {},
	"RequestTimeout":                         {},
}

// cancellation reason codes that make a cancelled transaction retryable
var retryableCancellations = map[string]struct{}{
	"TransactionConflict":                    {},
	"ThrottlingError":                        {},
	"ProvisionedThroughputExceeded":          {},
	"ProvisionedThroughputExceededException": {},
}

// isConditionFailure reports whether err is a failed write condition,
// either on a single put or inside a cancelled transaction.
func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

// isRetryable reports whether err is transient. Condition failures and
// cancelled contexts are never retried.
func isRetryable(err error) bool {
	if err == nil || isConditionFailure(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			code := aws.ToString(reason.Code)
			if code == "" || code == "None" {
				continue
			}
			if _, ok := retryableCancellations[code]; !ok {
				return false
			}
		}
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		_, ok := retryableCodes[apiErr.ErrorCode()]
		return ok
	}
	return false
}
