package llm

import "errors"

// Generation failures map onto a small typed taxonomy so callers can decide
// between retrying and asking the user to change input. Match with errors.Is.
var (
	// ErrUnavailable is returned when the OpenAI integration is not configured.
	ErrUnavailable = errors.New("openai integration is not configured")

	// ErrTimeout is returned when a generation call exceeds its deadline.
	ErrTimeout = errors.New("generation timed out")

	// ErrSchemaMismatch is returned when the model's payload cannot be decoded
	// into, or fails validation against, the requested output schema.
	ErrSchemaMismatch = errors.New("generation response does not match schema")

	// ErrUpstreamRejected is returned for model-side failures: transport
	// errors, API rejections, or empty responses.
	ErrUpstreamRejected = errors.New("generation rejected by upstream")

	// ErrPartialJoin is returned when concurrent generation branches disagree:
	// one produced a result and a sibling failed, so the joined artifact
	// cannot be assembled.
	ErrPartialJoin = errors.New("partial generation failure")
)
