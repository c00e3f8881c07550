package enums

type DeadLetterReason string

const (
	DeadLetterReasonMaxAttempts    DeadLetterReason = "max_attempts"
	DeadLetterReasonNonRetryable   DeadLetterReason = "non_retryable"
	DeadLetterReasonInvalidPayload DeadLetterReason = "invalid_payload"
)

var validDeadLetterReasons = []DeadLetterReason{
	DeadLetterReasonMaxAttempts,
	DeadLetterReasonNonRetryable,
	DeadLetterReasonInvalidPayload,
}

func (r DeadLetterReason) IsValid() bool {
	for _, candidate := range validDeadLetterReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
