// internal/medication/validate.go
package medication

import (
	"encoding/json"
	"fmt"
	"strings"

	"medreminder/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// medicationSchema guards the store write boundary. Anything the management
// UI sends that does not match is rejected before a row is written.
const medicationSchema = `{
	"type": "object",
	"required": ["id", "userId", "name", "dosage", "reminderTimes"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"userId": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1, "maxLength": 200},
		"dosage": {"type": "string", "minLength": 1, "maxLength": 100},
		"frequency": {"type": "string"},
		"notes": {"type": "string", "maxLength": 2000},
		"reminderTimes": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"}
		},
		"isActive": {"type": "boolean"},
		"whatsappPhone": {"type": "string", "pattern": "^[+0-9][0-9 ()-]{6,19}$"}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(medicationSchema)

// Validate checks a medication against the write-boundary schema.
func Validate(med *Medication) error {
	raw, err := json.Marshal(med)
	if err != nil {
		return errors.NewMedicationInvalidError(err.Error())
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return errors.NewMedicationInvalidError(fmt.Sprintf("schema validation error: %v", err))
	}

	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return errors.NewMedicationInvalidError(strings.Join(msgs, "; "))
	}

	return nil
}
