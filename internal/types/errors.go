package types

import (
	"errors"
	"fmt"
)

// Error categories. Every parse-time sentinel below wraps exactly one of these,
// so callers can classify failures with errors.Is.
var (
	// ErrMalformedInput indicates a missing or wrong-typed required JSON field.
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnsupportedOperator indicates an unknown matcher, logic or condition type.
	ErrUnsupportedOperator = errors.New("unsupported operator")
)

// Sentinel errors for rule parsing.
var (
	// ErrInvalidJSON indicates the document is not valid JSON.
	ErrInvalidJSON = fmt.Errorf("%w: invalid JSON", ErrMalformedInput)

	// ErrMissingField indicates a required field is absent or null.
	ErrMissingField = fmt.Errorf("%w: required field missing", ErrMalformedInput)

	// ErrWrongFieldType indicates a field holds the wrong JSON type.
	ErrWrongFieldType = fmt.Errorf("%w: field has wrong type", ErrMalformedInput)

	// ErrEmptyGroup indicates a group condition without nested conditions.
	ErrEmptyGroup = fmt.Errorf("%w: group has no conditions", ErrMalformedInput)

	// ErrConditionTooDeep indicates group nesting beyond MaxConditionDepth.
	ErrConditionTooDeep = fmt.Errorf("%w: condition nesting exceeds maximum depth", ErrMalformedInput)

	// ErrTooManyValues indicates a matcher exceeds MaxMatcherValues.
	ErrTooManyValues = fmt.Errorf("%w: matcher has too many values", ErrMalformedInput)

	// ErrTooManyRequests indicates a historical condition exceeds MaxHistoryRequests.
	ErrTooManyRequests = fmt.Errorf("%w: historical condition has too many events", ErrMalformedInput)

	// ErrInvalidConsequence indicates a consequence missing id, type or detail.
	ErrInvalidConsequence = fmt.Errorf("%w: invalid consequence", ErrMalformedInput)

	// ErrUnsupportedConditionType indicates an unknown condition type.
	ErrUnsupportedConditionType = fmt.Errorf("%w: condition type", ErrUnsupportedOperator)

	// ErrUnsupportedMatcher indicates an unknown matcher code.
	ErrUnsupportedMatcher = fmt.Errorf("%w: matcher", ErrUnsupportedOperator)

	// ErrUnsupportedLogic indicates a group logic other than and/or.
	ErrUnsupportedLogic = fmt.Errorf("%w: logic", ErrUnsupportedOperator)

	// ErrUnsupportedSearchType indicates an unknown historical search type.
	ErrUnsupportedSearchType = fmt.Errorf("%w: search type", ErrUnsupportedOperator)
)

// Sentinel errors for evaluation collaborators.
var (
	// ErrCoercionFailed indicates a token value could not be coerced to its declared type.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrFieldNotFound indicates a token key could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrNoHistory indicates no historical event store is configured.
	ErrNoHistory = errors.New("event history not configured")

	// ErrInvalidTemplate indicates a token template is not {{key}} or {{fn(key)}}.
	ErrInvalidTemplate = errors.New("invalid token template")
)
