package identity

// ValidationError reports a malformed input with the field it belongs to,
// so HTTP handlers can surface field-level detail.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}
