package rest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/botarena/internal/apperror"
)

// wasmPayload accepts a bot binary as a base64 string or as a JSON array of bytes.
type wasmPayload []byte

func (that *wasmPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '[' {
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err)
		}

		payload := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return fmt.Errorf("%w: byte %d out of range: %d", apperror.ErrInvalidPayload, i, v)
			}

			payload[i] = byte(v)
		}
		*that = payload

		return nil
	}

	var payload []byte
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err)
	}
	*that = payload

	return nil
}

type newBotRequest struct {
	Name    string      `json:"name"`
	Creator string      `json:"creator"`
	Wasm    wasmPayload `json:"wasm"`
}

type errorResponse struct {
	Error string `json:"error"`
}
