package engine

import "errors"

// Ошибки валидации определения pipeline.
var (
	// ErrEmptyStages — pipeline не содержит стадий.
	ErrEmptyStages = errors.New("pipeline has no stages")

	// ErrEmptyStage — стадия не содержит элементов.
	ErrEmptyStage = errors.New("pipeline stage has no elements")

	// ErrEmptyElementName — элемент не имеет имени.
	ErrEmptyElementName = errors.New("stage element has empty name")

	// ErrDuplicateElementName — несколько элементов с одинаковым именем.
	ErrDuplicateElementName = errors.New("duplicate stage element name")

	// ErrReservedElementName — имя элемента совпадает со служебным state.
	ErrReservedElementName = errors.New("reserved stage element name")

	// ErrUnknownElementType — неизвестный тип элемента.
	ErrUnknownElementType = errors.New("unknown stage element type")

	// ErrMissingWorkflowID — ENV_STATE элемент не ссылается на workflow.
	ErrMissingWorkflowID = errors.New("env state element has no workflowId")

	// ErrInvalidStateMachine — скомпилированный граф не прошёл проверку.
	ErrInvalidStateMachine = errors.New("compiled state machine is invalid")
)

// Ошибки разбора определений.
var (
	// ErrEmptyDefinition — пустой документ.
	ErrEmptyDefinition = errors.New("empty definition")

	// ErrDecodeDefinition — документ не удалось разобрать.
	ErrDecodeDefinition = errors.New("decode definition failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Stage   string // стадия, где произошла ошибка
	Element string // элемент стадии
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	switch {
	case e.Element != "":
		return "element " + e.Element + ": " + e.Message
	case e.Stage != "":
		return "stage " + e.Stage + ": " + e.Message
	default:
		return e.Message
	}
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stage, element, message string, err error) *ValidationError {
	return &ValidationError{
		Stage:   stage,
		Element: element,
		Message: message,
		Err:     err,
	}
}
