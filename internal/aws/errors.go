package aws

import (
	"errors"

	smithy "github.com/aws/smithy-go"
)

// ErrorCode extracts the service error code from an SDK error chain, or ""
// when the error is not an API error. Used to tag log entries so throttles
// and condition failures are distinguishable without parsing messages.
func ErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}
