package decision

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema is the contract the prompt asks the model to honor.
// Strict parsing validates against it before decoding; anything looser
// goes through recovery instead.
var responseSchema = mustCompileSchema(map[string]interface{}{
	"type":     "object",
	"required": []string{"action", "confidence", "justification"},
	"properties": map[string]interface{}{
		"action": map[string]interface{}{
			"type": "string",
			"enum": []string{string(ActionLong), string(ActionShort), string(ActionNeutral)},
		},
		"confidence": map[string]interface{}{
			"type":    "number",
			"minimum": 0,
			"maximum": 1,
		},
		"justification": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"risk_level": map[string]interface{}{
			"type": "string",
			"enum": []string{RiskLow, RiskMedium, RiskHigh},
		},
		"key_factors": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"stop_loss":   map[string]interface{}{"type": "number"},
		"take_profit": map[string]interface{}{"type": "number"},
	},
	"additionalProperties": false,
})

func mustCompileSchema(def map[string]interface{}) *jsonschema.Schema {
	raw, err := json.Marshal(def)
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("decision.json", strings.NewReader(string(raw))); err != nil {
		panic(err)
	}
	s, err := c.Compile("decision.json")
	if err != nil {
		panic(err)
	}
	return s
}
