// Package pipeline holds the tagged-variant types that drive the per-file
// state machine, so the coordinator never string-matches an HTTP response
// body itself.
package pipeline

import "encoding/json"

// ExtractionKind enumerates the FOI response classification outcomes.
// Every terminal control-row status in the extraction family has exactly
// one corresponding kind.
type ExtractionKind string

const (
	// ExtractionSuccess: HTTP 200, object body, non-empty result, no failed.
	ExtractionSuccess ExtractionKind = "success"

	// ExtractionServiceFailed: the service itself is at fault — missing or
	// empty result, a non-object body, a network error, a timeout, or a 5xx.
	ExtractionServiceFailed ExtractionKind = "extraction_service_failed"

	// ExtractionFilePasswordFailed: failed[0].failure_reason mentions
	// "invalid password" (case-insensitive substring).
	ExtractionFilePasswordFailed ExtractionKind = "extraction_file_password_failed"

	// ExtractionFileFailed: any other per-file failure_reason ("no matched
	// template", "data format error", or an unrecognized reason, which also
	// resolves into this kind), or an HTTP 4xx response.
	ExtractionFileFailed ExtractionKind = "extraction_file_failed"
)

// Outcome is the parsed, classified result of one FOI call. Detail carries
// the failure_reason or a short description of why the service kind was
// chosen; it feeds both the control row's message column and, for the
// extraction-failure kinds, the IQube notification reason.
type Outcome struct {
	Kind   ExtractionKind
	Detail string

	// Result carries the FOI response's result[] on a successful
	// extraction, forwarded verbatim as the ITM submission payload.
	Result []json.RawMessage
}

// IsSuccess reports whether the extraction itself succeeded. A true result
// means the coordinator proceeds to ITM.
func (o Outcome) IsSuccess() bool {
	return o.Kind == ExtractionSuccess
}

// NotifiesIQube reports whether this outcome is an extraction failure that
// should be reported to IQube. Service-kind failures still notify — only
// ITM failures (handled outside this package) skip IQube.
func (o Outcome) NotifiesIQube() bool {
	return o.Kind == ExtractionServiceFailed ||
		o.Kind == ExtractionFilePasswordFailed ||
		o.Kind == ExtractionFileFailed
}

// ControlMessage formats the detail the way the control row's message
// column and the IQube reason field both expect: "<kind>: <detail>".
func (o Outcome) ControlMessage() string {
	if o.Detail == "" {
		return string(o.Kind)
	}
	return string(o.Kind) + ": " + o.Detail
}
