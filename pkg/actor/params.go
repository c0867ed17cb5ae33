package actor

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/weft/pkg/token"
)

// DecodeParams maps resolved parameter tokens onto a typed config struct.
// Numeric tokens coerce into int fields where the value is whole, matching
// how script literals are written (capacity=8, not capacity=8.0).
func DecodeParams(params map[string]token.Token, out any) error {
	raw := make(map[string]any, len(params))
	for name, tok := range params {
		raw[name] = tok.ToAny()
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("building parameter decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decoding parameters: %w", err)
	}
	return nil
}
