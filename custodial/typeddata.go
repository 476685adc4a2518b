package custodial

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/thirdfy/agentkit"
)

// typedDataSchema constrains EIP-712 payloads before they are submitted for
// signing. The wallet API rejects malformed payloads with an opaque error,
// so validating locally gives callers actionable messages.
var typedDataSchema = []byte(`{
	"type": "object",
	"required": ["domain", "types", "primaryType", "message"],
	"properties": {
		"domain": {
			"type": "object"
		},
		"types": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["name", "type"],
					"properties": {
						"name": {"type": "string", "minLength": 1},
						"type": {"type": "string", "minLength": 1}
					}
				}
			}
		},
		"primaryType": {
			"type": "string",
			"minLength": 1
		},
		"message": {
			"type": "object"
		}
	}
}`)

// ValidationResult represents the result of validating a typed-data payload
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateTypedData validates an EIP-712 payload against the typed-data
// schema
//
// Args:
//   - typedData: The payload to validate
//
// Returns:
//   - ValidationResult indicating if the payload is well-formed
func ValidateTypedData(typedData *agentkit.TypedData) ValidationResult {
	if typedData == nil {
		return ValidationResult{
			Valid:  false,
			Errors: []string{"typed data is nil"},
		}
	}

	docJSON, err := json.Marshal(typedData)
	if err != nil {
		return ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("failed to marshal typed data: %v", err)},
		}
	}

	schemaLoader := gojsonschema.NewBytesLoader(typedDataSchema)
	documentLoader := gojsonschema.NewBytesLoader(docJSON)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("validation failed: %v", err)},
		}
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return ValidationResult{Valid: false, Errors: errs}
	}

	return ValidationResult{Valid: true}
}
