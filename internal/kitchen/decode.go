package kitchen

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// decodeInput maps the untyped command payload onto a typed input struct.
// Weak typing tolerates JSON numbers arriving as float64 for integer fields;
// unknown fields are ignored so additive API changes stay compatible.
func decodeInput(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("kitchen: build decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("kitchen: decode input: %w", err)
	}
	return nil
}

// inputID extracts the target entity id from the raw payload.
func inputID(input map[string]any) string {
	id, _ := input["id"].(string)
	return id
}
