package inbox

// ValidationError is a caller-side mistake caught before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmptyText            = &ValidationError{Message: "message text is empty"}
	ErrNoActiveConversation = &ValidationError{Message: "select a conversation first"}
	ErrNoRecipient          = &ValidationError{Message: "recipient not found"}
	ErrEmptyRecipient       = &ValidationError{Message: "recipient is empty"}
	ErrEmptyReaction        = &ValidationError{Message: "reaction needs a message and an emoji"}
)
