package harness

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ZanzyTHEbar/agentre-bench/arb/harness/tools"
)

// VerdictValidator checks submitted verdicts against the submission tool
// schema. Validation is advisory: a nonconforming verdict is still
// captured and scored, the problems are only logged.
type VerdictValidator struct {
	schema gojsonschema.JSONLoader
}

func NewVerdictValidator() *VerdictValidator {
	return &VerdictValidator{
		schema: gojsonschema.NewBytesLoader([]byte(tools.FinalAnswerSchema)),
	}
}

// Validate returns a descriptive error when the verdict does not conform
// to the submission schema.
func (v *VerdictValidator) Validate(verdict json.RawMessage) error {
	if len(verdict) == 0 {
		return fmt.Errorf("verdict is empty")
	}

	result, err := gojsonschema.Validate(v.schema, gojsonschema.NewBytesLoader(verdict))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}
