package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

// Decode unpacks a raw inbound message into an Action.
//
// Anything that is not an envelope tagged TargetBuilder returns
// ErrNotAddressed. A host-bound envelope whose data cannot be parsed returns a
// *MalformedError.
func Decode(raw []byte) (Action, error) {
	var wire struct {
		Target Tag             `json:"target"`
		Data   json.RawMessage `json:"data"`
	}
	if err := api.Unmarshal(raw, &wire); err != nil || wire.Target != TargetBuilder {
		return Action{}, ErrNotAddressed
	}

	env := Envelope{Target: wire.Target}
	if len(wire.Data) == 0 || wire.Data[0] != '"' {
		return Action{}, &MalformedError{Reason: "data is not a string"}
	}
	if err := api.Unmarshal(wire.Data, &env.Data); err != nil {
		return Action{}, &MalformedError{Reason: "data is not a string", Err: err}
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope parses the action carried by an already unpacked envelope.
func DecodeEnvelope(env Envelope) (Action, error) {
	if env.Target != TargetBuilder {
		return Action{}, ErrNotAddressed
	}

	var action Action
	if err := api.UnmarshalFromString(env.Data, &action); err != nil {
		return Action{}, &MalformedError{Reason: "data is not a valid action", Err: err}
	}
	if action.Type == "" {
		return Action{}, &MalformedError{Reason: "action has no type"}
	}
	return action, nil
}

// Encode builds a host-to-builder envelope. A nil payload is omitted.
func Encode(kind Kind, payload any) (Envelope, error) {
	action := Action{Type: kind}
	if payload != nil {
		raw, err := api.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		action.Payload = json.RawMessage(raw)
	}

	data, err := api.MarshalToString(action)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s action: %w", kind, err)
	}
	return Envelope{Target: TargetCore, Data: data}, nil
}

// Marshal serializes an envelope for the wire.
func Marshal(env Envelope) ([]byte, error) {
	return api.Marshal(env)
}

// DecodePayload unmarshals an action payload into v.
func DecodePayload(action Action, v any) error {
	if !action.HasPayload() {
		return &MalformedError{Reason: fmt.Sprintf("%s has no payload", action.Type)}
	}
	if err := api.Unmarshal(action.Payload, v); err != nil {
		return &MalformedError{Reason: fmt.Sprintf("%s payload", action.Type), Err: err}
	}
	return nil
}
