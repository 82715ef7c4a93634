package http

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	tollgate "github.com/tollgate-protocol/tollgate-go"
)

// Per-operation input schemas. The pipeline only sees already-validated,
// strongly typed requests; this is where the validation happens.
var operationSchemas = map[tollgate.Operation]string{
	tollgate.OpSwap: `{
		"type": "object",
		"required": ["asset_in", "asset_out"],
		"properties": {
			"asset_in":  {"type": "string", "minLength": 1},
			"asset_out": {"type": "string", "minLength": 1},
			"slippage_bps": {"type": "string", "pattern": "^[0-9]+$"}
		}
	}`,
	tollgate.OpTransfer: `{
		"type": "object",
		"required": ["recipient"],
		"properties": {
			"recipient": {"type": "string", "minLength": 1},
			"memo":      {"type": "string"}
		}
	}`,
	tollgate.OpBid: `{
		"type": "object",
		"required": ["auction_id"],
		"properties": {
			"auction_id": {"type": "string", "minLength": 1}
		}
	}`,
	tollgate.OpVote: `{
		"type": "object",
		"required": ["proposal_id", "choice"],
		"properties": {
			"proposal_id": {"type": "string", "minLength": 1},
			"choice":      {"type": "string", "minLength": 1}
		}
	}`,
	tollgate.OpDelegate: `{
		"type": "object",
		"required": ["delegatee"],
		"properties": {
			"delegatee": {"type": "string", "minLength": 1}
		}
	}`,
	tollgate.OpProve: `{
		"type": "object",
		"required": ["circuit"],
		"properties": {
			"circuit": {"type": "string", "minLength": 1}
		}
	}`,
}

// ValidateOperationInputs checks an execution request's inputs against the
// JSON schema for its operation. Unknown operations are rejected.
func ValidateOperationInputs(op tollgate.Operation, inputs map[string]string) error {
	schema, ok := operationSchemas[op]
	if !ok {
		return fmt.Errorf("unsupported operation: %s", op)
	}

	doc, err := json.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("failed to marshal inputs: %v", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %v", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid inputs for %s: %s", op, errs[0].String())
		}
		return fmt.Errorf("invalid inputs for %s", op)
	}

	return nil
}
