package validate

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed process-log.schema.json
var processLogSchemaJSON []byte

var (
	compileOnce      sync.Once
	processLogSchema *jsonschema.Schema
	compileErr       error
)

func compiledProcessLogSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		processLogSchema, compileErr = compiler.Compile(processLogSchemaJSON)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile process-log schema: %w", compileErr)
		}
	})
	return processLogSchema, compileErr
}

// ValidateProcessLogJSON checks the structural shape of a
// process-log.json document: top-level fields present, events carry
// the timestamp/type/meta envelope. Per-kind payload validation is the
// event log model's job, not the schema's.
func ValidateProcessLogJSON(data []byte) error {
	schema, err := compiledProcessLogSchema()
	if err != nil {
		return err
	}
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("process-log schema validation failed: %v", result.Errors)
}
