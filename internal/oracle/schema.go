package oracle

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// tradeOfferSchema is the advisory shape of an extraction record. Field
// presence is not enforced, only the types of fields that do appear, so a
// sparse but well-formed response still passes while a structurally wrong
// one (non-object root, numeric sender) is rejected.
const tradeOfferSchema = `{
	"type": "object",
	"properties": {
		"sender": {
			"type": "object",
			"properties": {
				"firstname": {"type": "string"},
				"lastname":  {"type": "string"},
				"email":     {"type": "string"},
				"company":   {"type": "string"},
				"vat":       {"type": "string"},
				"address":   {"type": "string"}
			}
		},
		"action": {"type": "string"},
		"meat_type": {
			"oneOf": [
				{"type": "string"},
				{"type": "array", "items": {"type": "string"}}
			]
		},
		"title":       {"type": "string"},
		"quantity":    {"type": "string"},
		"package":     {"type": "string"},
		"price":       {"type": "string"},
		"incoterms":   {"type": "string"},
		"currency":    {"type": "string"},
		"description": {"type": "string"}
	}
}`

var compiledSchema = jsonschema.MustCompileString("trade_offer.json", tradeOfferSchema)

// validateRecord checks a decoded oracle response against the advisory
// schema.
func validateRecord(v any) error {
	return compiledSchema.Validate(v)
}

// SchemaJSON returns the schema text for embedding into the prompt, with
// indentation collapsed.
func SchemaJSON() string {
	return strings.Join(strings.Fields(tradeOfferSchema), " ")
}
