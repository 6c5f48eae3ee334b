package protocol

import "github.com/bytedance/sonic"

// Encode serializes a message for the bus or the HTTP API.
func Encode(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// Decode parses a message produced by Encode.
func Decode(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}
