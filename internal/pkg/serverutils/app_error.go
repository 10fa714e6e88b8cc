package serverutils

// AppError is a recoverable application error carrying the HTTP status it
// should surface with. Services return these; the error middleware turns them
// into structured JSON responses.
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(status int, code, message string) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// WithMessage returns a copy with a more specific message, keeping status and code.
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Status:  e.Status,
		Code:    e.Code,
		Message: message,
	}
}
