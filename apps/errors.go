package apps

// ArgumentError reports a bad command-line argument of the dashboard CLI.
type ArgumentError struct {
	msg string
}

func NewArgumentError(msg string) *ArgumentError {
	return &ArgumentError{msg: msg}
}

func (err *ArgumentError) Error() string {
	return err.msg
}
