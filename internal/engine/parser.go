package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Допустимые типы элементов pipeline.
var validElementTypes = map[domain.StateType]bool{
	domain.StateTypeEnvState: true,
	domain.StateTypeApproval: true,
}

// ParsePipeline разбирает определение pipeline.
// Документ, начинающийся с '{', читается как JSON, остальные — как YAML.
func ParsePipeline(data []byte) (*domain.Pipeline, error) {
	var p domain.Pipeline
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseWorkflow разбирает определение workflow.
func ParseWorkflow(data []byte) (*domain.Workflow, error) {
	var w domain.Workflow
	if err := decode(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func decode(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ErrEmptyDefinition
	}

	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, v); err != nil {
			return fmt.Errorf("%w: %v", ErrDecodeDefinition, err)
		}
		return nil
	}

	if err := yaml.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeDefinition, err)
	}
	return nil
}

// ValidatePipeline выполняет валидацию определения pipeline.
//
// Проверяет:
// - Наличие стадий и элементов
// - Уникальность имён элементов (имя элемента = имя State)
// - Корректность типов элементов
// - Наличие workflowId у включённых ENV_STATE элементов
func ValidatePipeline(p *domain.Pipeline) error {
	if p == nil || len(p.Stages) == 0 {
		return ErrEmptyStages
	}

	names := make(map[string]bool)

	for i := range p.Stages {
		stage := &p.Stages[i]

		if len(stage.Elements) == 0 {
			return NewValidationError(stage.Name, "",
				"stage has no elements", ErrEmptyStage)
		}

		for j := range stage.Elements {
			if err := validateElement(stage.Name, &stage.Elements[j], names); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateElement валидирует один элемент стадии.
// names — уже встреченные имена элементов.
func validateElement(stageName string, el *domain.PipelineStageElement, names map[string]bool) error {
	if el.Name == "" {
		return NewValidationError(stageName, "", "element has empty name", ErrEmptyElementName)
	}

	if el.Name == forkStateName {
		return NewValidationError(stageName, el.Name,
			fmt.Sprintf("element name %s is reserved", el.Name), ErrReservedElementName)
	}

	if names[el.Name] {
		return NewValidationError(stageName, el.Name,
			fmt.Sprintf("duplicate element name: %s", el.Name), ErrDuplicateElementName)
	}
	names[el.Name] = true

	if !validElementTypes[el.Type] {
		return NewValidationError(stageName, el.Name,
			fmt.Sprintf("unknown element type: %q", el.Type), ErrUnknownElementType)
	}

	if el.Type == domain.StateTypeEnvState && !el.Disabled && el.WorkflowID() == "" {
		return NewValidationError(stageName, el.Name,
			"env state element has no workflowId", ErrMissingWorkflowID)
	}

	return nil
}

// IsValidElementType проверяет, является ли тип элемента допустимым.
func IsValidElementType(t domain.StateType) bool {
	return validElementTypes[t]
}
