// Package codec converts between base64 text, raw PCM bytes and decoded
// audio buffers, and builds the media chunks sent to the live session.
package codec

import (
	"encoding/base64"
	"fmt"
)

// Encode returns the standard base64 encoding of data.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses standard base64 text.
func Decode(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}
