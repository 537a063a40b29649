package hayai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Supported wire content types. JSON is the default; msgpack is negotiated
// via Content-Type on the way in and Accept on the way out.
const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

// decodePayload unmarshals a request body into v according to its declared
// content type. An absent or unrecognized content type decodes as JSON.
// Msgpack uses the json struct tags so both wire formats carry the field
// names the schema registry declares.
func decodePayload(contentType string, data []byte, v any) error {
	if isMsgpack(contentType) {
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("decode msgpack body: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode json body: %w", err)
	}
	return nil
}

// decodeGeneric unmarshals a request body into a generic value for the
// validation pipeline to walk.
func decodeGeneric(contentType string, data []byte) (any, error) {
	var value any
	if err := decodePayload(contentType, data, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// encodePayload marshals a response body according to the request's Accept
// header, returning the encoded bytes and the content type written.
func encodePayload(accept string, v any) ([]byte, string, error) {
	if isMsgpack(accept) {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			return nil, "", fmt.Errorf("encode msgpack body: %w", err)
		}
		return buf.Bytes(), contentTypeMsgpack, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("encode json body: %w", err)
	}
	return data, contentTypeJSON, nil
}

func isMsgpack(mediaType string) bool {
	mediaType = strings.ToLower(mediaType)
	return strings.Contains(mediaType, "msgpack") || strings.Contains(mediaType, "x-msgpack")
}
