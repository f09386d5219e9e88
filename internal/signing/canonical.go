package signing

import (
	"bytes"
	"encoding/json"
)

// Canonicalize renders v as compact JSON with object keys sorted at every depth.
// HTML characters, slashes and non-ASCII text are left unescaped so the bytes are
// reproducible by any verifier that applies the same rules.
func Canonicalize(v any) ([]byte, error) {
	var raw []byte
	switch cast := v.(type) {
	case json.RawMessage:
		raw = cast
	case []byte:
		raw = cast
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	// encoding/json writes map keys in sorted order, so a generic tree is canonical.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
