package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}
	env := Envelope{T: t}
	if payload != nil {
		pb, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.P = pb
	}
	return json.Marshal(env)
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if len(b) == 0 {
		return env, fmt.Errorf("decode: empty frame")
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return env, err
	}
	if env.T == "" {
		return env, fmt.Errorf("decode: missing message type")
	}
	return env, nil
}

// DecodePayload unmarshals and validates the envelope payload into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	if err := json.Unmarshal(env.P, &out); err != nil {
		return out, err
	}
	if err := validate.Struct(&out); err != nil {
		return out, err
	}
	return out, nil
}
