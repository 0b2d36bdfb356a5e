package subs

// LoadFailure classifies why a subtitle load failed. The distinction is
// user-facing: the player OSD shows a different message per failure.
type LoadFailure int

const (
	FailureBadReference LoadFailure = iota
	FailureNoExtractor
	FailureUnsupportedCodec
	FailureExtractTimeout
	FailureExtract
	FailureDownload
	FailureMissingFile
	FailureParse
)

// LoadError is a user-actionable subtitle load failure. It is shown on the
// player OSD verbatim and never retried.
type LoadError struct {
	Reason  LoadFailure
	Message string
}

func (e *LoadError) Error() string { return e.Message }

func loadErrorf(reason LoadFailure, msg string) *LoadError {
	return &LoadError{Reason: reason, Message: msg}
}
