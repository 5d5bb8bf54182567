package handler

// UserError is an error type that is used to represent
// an error that should be displayed to the user.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

var _ error = (*UserError)(nil)

var (
	errNotInVoice   = &UserError{Message: "Join a voice channel first"}
	errMissingURL   = &UserError{Message: "Tell me what to play: play <url>"}
	errUnknownGuild = &UserError{Message: "Commands only work in a server"}
)
