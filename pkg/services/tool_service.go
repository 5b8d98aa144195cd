package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

type ToolFunction interface {
	Name() string
	Description() string
	Parameters() jsonschema.Definition
	Function() any
}

type toolService struct {
	tools []ToolFunction
	defs  []domain.ToolDefinition
}

func NewToolService(toolFunctions []ToolFunction) (*toolService, error) {
	defs := make([]domain.ToolDefinition, len(toolFunctions))
	for i, t := range toolFunctions {
		if err := validateFunction(t); err != nil {
			return nil, fmt.Errorf("invalid tool function %q: %w", t.Name(), err)
		}

		defs[i] = domain.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}

	return &toolService{tools: toolFunctions, defs: defs}, nil
}

func (ts *toolService) Definitions() []domain.ToolDefinition {
	return ts.defs
}

// InvokeFunction calls a specific tool by name with the provided arguments.
func (ts *toolService) InvokeFunction(ctx context.Context, ideaID int64, name, args string) (string, error) {
	slog.DebugContext(ctx, "Invoking function", "name", name, "args", args)

	var tool ToolFunction
	for _, t := range ts.tools {
		if t.Name() == name {
			tool = t
			break
		}
	}
	if tool == nil {
		return "", fmt.Errorf("tool not found: %q", name)
	}

	parsedArgs := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &parsedArgs); err != nil {
			return "", fmt.Errorf("parsing arguments: %w", err)
		}
	}

	schema := tool.Parameters()
	if err := validateArguments(schema, parsedArgs); err != nil {
		return "", fmt.Errorf("invalid arguments for function %q: %w", name, err)
	}

	handler := reflect.ValueOf(tool.Function())
	if handler.Kind() != reflect.Func {
		return "", fmt.Errorf("function %q is not callable", name)
	}

	// call as (ctx, ideaID, required params in schema order)
	funcArgs := []reflect.Value{
		reflect.ValueOf(ctx),
		reflect.ValueOf(ideaID),
	}
	for _, param := range schema.Required {
		funcArgs = append(funcArgs, reflect.ValueOf(parsedArgs[param]))
	}

	results := handler.Call(funcArgs)
	if len(results) != 2 {
		return "", fmt.Errorf("function %q must return (string, error), got %d values", name, len(results))
	}

	result, ok := results[0].Interface().(string)
	if !ok {
		return "", fmt.Errorf("function %q returned non-string result", name)
	}

	var err error
	if results[1].Interface() != nil {
		err, _ = results[1].Interface().(error)
	}

	slog.DebugContext(ctx, "Function executed", "result", result, "err", err)
	return result, err
}

func validateFunction(t ToolFunction) error {
	if t.Name() == "" {
		return errors.New("function name cannot be empty")
	}
	fn := t.Function()
	if fn == nil {
		return errors.New("function handler cannot be nil")
	}
	if reflect.TypeOf(fn).Kind() != reflect.Func {
		return errors.New("function handler must be callable")
	}
	return nil
}

func validateArguments(schema jsonschema.Definition, args map[string]any) error {
	for _, paramName := range schema.Required {
		value, ok := args[paramName]
		if !ok {
			return fmt.Errorf("missing required parameter %q", paramName)
		}

		paramDef, ok := schema.Properties[paramName]
		if !ok {
			continue
		}
		if !isValidType(value, paramDef.Type) {
			return fmt.Errorf("parameter %q has invalid type: expected %q, got %T", paramName, paramDef.Type, value)
		}
	}
	return nil
}

func isValidType(value any, expectedType jsonschema.DataType) bool {
	switch expectedType {
	case jsonschema.String:
		_, ok := value.(string)
		return ok
	case jsonschema.Number, jsonschema.Integer:
		_, ok := value.(float64)
		return ok
	case jsonschema.Boolean:
		_, ok := value.(bool)
		return ok
	default:
		return false
	}
}
