// Package codec converts protocol messages to and from their JSON wire form.
//
// The encoded bytes carry no length prefix and no padding: the transport
// reports the exact byte count out of band.
package codec

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/bytedance/sonic"

	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

var api = sonic.ConfigStd

type outbound struct {
	Type           domain.MessageType `json:"type"`
	UID            *uint64            `json:"uid,omitempty"`
	ExpectResponse float64            `json:"expectResponse,omitempty"`
	Atoms          interface{}        `json:"atoms,omitempty"`
}

// object holds the members of a JSON object by their exact key. Decoding
// through it keeps key matching case-sensitive, which struct decoding is not.
type object map[string]json.RawMessage

func decodeObject(raw []byte) (object, error) {
	var obj object
	if err := api.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedMessage, err)
	}
	return obj, nil
}

// field decodes the member named key into v. Absent and null members report false.
func (o object) field(key string, v interface{}) (bool, error) {
	raw, ok := o[key]
	if !ok || isAbsent(raw) {
		return false, nil
	}
	if err := api.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", errs.ErrMalformedMessage, key, err)
	}
	return true, nil
}

// required decodes the member named key into v and fails when it is missing.
func (o object) required(key string, v interface{}) error {
	ok, err := o.field(key, v)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing %s", errs.ErrMalformedMessage, key)
	}
	return nil
}

// Encode produces the wire form of msg.
func Encode(msg *domain.Message) ([]byte, error) {
	if msg == nil || !msg.Type.Valid() {
		return nil, fmt.Errorf("%w: cannot encode message without a valid type", errs.ErrMalformedMessage)
	}

	out := outbound{
		Type:           msg.Type,
		UID:            msg.UID,
		ExpectResponse: msg.ExpectResponse,
	}
	switch msg.Type {
	case domain.MsgRequest:
		atoms := msg.Forces
		if atoms == nil {
			atoms = []domain.AtomForce{}
		}
		out.Atoms = atoms
	case domain.MsgResponse:
		atoms := msg.Corrections
		if atoms == nil {
			atoms = []domain.AtomCorrection{}
		}
		out.Atoms = atoms
	}

	payload, err := api.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.Type, err)
	}
	return payload, nil
}

// Decode parses a wire payload. Any payload that is not a JSON object of one
// of the six message types with its required fields fails with ErrMalformedMessage.
func Decode(payload []byte) (*domain.Message, error) {
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", errs.ErrMalformedMessage)
	}

	in, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}
	var typ string
	if err := in.required("type", &typ); err != nil {
		return nil, err
	}

	msgType := domain.MessageType(typ)
	if !msgType.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", errs.ErrMalformedMessage, typ)
	}

	msg := &domain.Message{Type: msgType}
	var uid uint64
	hasUID, err := in.field("uid", &uid)
	if err != nil {
		return nil, err
	}
	if hasUID {
		if uid == 0 {
			return nil, fmt.Errorf("%w: uid must be positive", errs.ErrMalformedMessage)
		}
		msg.UID = &uid
	}
	if _, err := in.field("expectResponse", &msg.ExpectResponse); err != nil {
		return nil, err
	}

	switch msgType {
	case domain.MsgRequest:
		forces, err := decodeForces(in["atoms"])
		if err != nil {
			return nil, err
		}
		msg.Forces = forces
	case domain.MsgResponse:
		fixes, err := decodeCorrections(in["atoms"])
		if err != nil {
			return nil, err
		}
		msg.Corrections = fixes
	}

	return msg, nil
}

// Verify checks that an encoded payload survives the trip back to text:
// valid UTF-8 holding a single well-formed JSON value.
func Verify(payload []byte) error {
	if !utf8.Valid(payload) {
		return fmt.Errorf("%w: encoded payload is not valid UTF-8", errs.ErrEncodingMismatch)
	}
	if !sonic.Valid(payload) {
		return fmt.Errorf("%w: encoded payload is not well-formed JSON", errs.ErrEncodingMismatch)
	}
	return nil
}

func decodeForces(raw json.RawMessage) ([]domain.AtomForce, error) {
	items, err := decodeAtoms(raw, "request")
	if err != nil {
		return nil, err
	}

	forces := make([]domain.AtomForce, len(items))
	for i, it := range items {
		f := &forces[i]
		for key, v := range map[string]*float64{"x": &f.X, "y": &f.Y, "z": &f.Z, "vx": &f.VX, "vy": &f.VY, "vz": &f.VZ} {
			if _, err := it.field(key, v); err != nil {
				return nil, fmt.Errorf("atom %d: %w", i, err)
			}
		}
		for _, req := range []struct {
			key string
			v   *float64
		}{{"fx", &f.FX}, {"fy", &f.FY}, {"fz", &f.FZ}} {
			if err := it.required(req.key, req.v); err != nil {
				return nil, fmt.Errorf("atom %d: %w", i, err)
			}
		}
	}
	return forces, nil
}

func decodeCorrections(raw json.RawMessage) ([]domain.AtomCorrection, error) {
	items, err := decodeAtoms(raw, "response")
	if err != nil {
		return nil, err
	}

	fixes := make([]domain.AtomCorrection, len(items))
	for i, it := range items {
		f := &fixes[i]
		for _, req := range []struct {
			key string
			v   *float64
		}{{"dfx", &f.DFX}, {"dfy", &f.DFY}, {"dfz", &f.DFZ}} {
			if err := it.required(req.key, req.v); err != nil {
				return nil, fmt.Errorf("atom %d: %w", i, err)
			}
		}
	}
	return fixes, nil
}

func decodeAtoms(raw json.RawMessage, kind string) ([]object, error) {
	if isAbsent(raw) {
		return nil, fmt.Errorf("%w: %s without atoms", errs.ErrMalformedMessage, kind)
	}
	var items []object
	if err := api.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: atoms: %v", errs.ErrMalformedMessage, err)
	}
	if items == nil {
		items = []object{}
	}
	return items, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
