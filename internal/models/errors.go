package models

// ValidationError reports malformed or implausible source data. It is never
// retried; the ingestion run aborts before anything is persisted.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}
