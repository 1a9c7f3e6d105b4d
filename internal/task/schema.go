package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nibzard/tasktrack/internal/utils"
)

const (
	taskSchemaURL = "https://schemas.tasktrack.dev/task.json"
	listSchemaURL = "https://schemas.tasktrack.dev/task-list.json"
)

// taskSchema describes one task object as the backend returns it.
const taskSchema = `{
  "type": "object",
  "required": ["id", "title", "completed"],
  "properties": {
    "id": {"type": "integer", "minimum": 1},
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "completed": {"type": "boolean"},
    "created_at": {"type": "string"}
  }
}`

var (
	compileOnce sync.Once
	compiled    struct {
		task *jsonschema.Schema
		list *jsonschema.Schema
		err  error
	}
)

// SchemaError reports where a payload violated the task schema.
type SchemaError struct {
	Path    string // dot path to the offending value
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Schema returns the raw JSON Schema for a single task.
func Schema() string {
	return taskSchema
}

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	listSchema := `{"type": "array", "items": ` + taskSchema + `}`

	if err := compiler.AddResource(taskSchemaURL, strings.NewReader(taskSchema)); err != nil {
		compiled.err = fmt.Errorf("add task schema: %w", err)
		return
	}
	if err := compiler.AddResource(listSchemaURL, strings.NewReader(listSchema)); err != nil {
		compiled.err = fmt.Errorf("add task list schema: %w", err)
		return
	}
	if compiled.task, compiled.err = compiler.Compile(taskSchemaURL); compiled.err != nil {
		return
	}
	compiled.list, compiled.err = compiler.Compile(listSchemaURL)
}

// ValidateJSON checks a single task payload against the task schema.
func ValidateJSON(data []byte) error {
	compileOnce.Do(compileSchemas)
	if compiled.err != nil {
		return fmt.Errorf("compile schema: %w", compiled.err)
	}
	return validate(compiled.task, data)
}

// ValidateListJSON checks a task array payload against the task schema.
func ValidateListJSON(data []byte) error {
	compileOnce.Do(compileSchemas)
	if compiled.err != nil {
		return fmt.Errorf("compile schema: %w", compiled.err)
	}
	return validate(compiled.list, data)
}

func validate(schema *jsonschema.Schema, data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return &SchemaError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	err := schema.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	return firstLeafError(ve)
}

// firstLeafError walks to the first cause without children, which carries
// the most specific message.
func firstLeafError(ve *jsonschema.ValidationError) *SchemaError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return &SchemaError{
		Path:    utils.JSONPointerToPath(ve.InstanceLocation),
		Message: ve.Message,
	}
}
