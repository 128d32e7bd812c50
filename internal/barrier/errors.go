package barrier

// Code — машиночитаемый код ошибки конфигурации barrier.
type Code string

// Коды ошибок.
const (
	// CodeBarriersNotRunningConcurrently — один identifier используется
	// шагами, которые не выполняются независимо друг от друга.
	CodeBarriersNotRunningConcurrently Code = "BARRIERS_NOT_RUNNING_CONCURRENTLY"

	// CodeInvalidBarrierConfiguration — barrier шаг без identifier.
	CodeInvalidBarrierConfiguration Code = "INVALID_BARRIER_CONFIGURATION"
)

// Error — ошибка конфигурации barrier с кодом.
// Фатальна для старта pipeline execution.
type Error struct {
	Code    Code
	Message string
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Is сравнивает ошибки по коду.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Эталонные ошибки для errors.Is.
var (
	ErrBarriersNotRunningConcurrently = &Error{Code: CodeBarriersNotRunningConcurrently}
	ErrInvalidBarrierConfiguration    = &Error{Code: CodeInvalidBarrierConfiguration}
)

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}
