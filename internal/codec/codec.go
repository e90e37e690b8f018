// Package codec converts code units between their structural and binary form.
//
// The binary form is a short magic header followed by the unit encoded with
// deterministic CBOR, so identical units always produce identical bytes.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/kiln/pkg/unit"
	"github.com/fxamacker/cbor/v2"
)

// Ext is the file extension of serialized units.
const Ext = ".unit"

// FormatVersion is the binary layout version written after the magic bytes.
const FormatVersion byte = 1

var magic = []byte("KILN")

var (
	// ErrBadMagic is returned when a payload does not start with the unit header.
	ErrBadMagic = errors.New("not a kiln unit")
	// ErrUnsupportedVersion is returned for payloads written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported unit format version")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{
		MaxNestedLevels: 32,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor decoder: %v", err))
	}
}

// Encode serializes u.
func Encode(u *unit.Unit) ([]byte, error) {
	body, err := encMode.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", u.Name, err)
	}
	out := make([]byte, 0, len(magic)+1+len(body))
	out = append(out, magic...)
	out = append(out, FormatVersion)
	return append(out, body...), nil
}

// Decode parses a serialized unit.
func Decode(data []byte) (*unit.Unit, error) {
	if len(data) <= len(magic) || !bytes.HasPrefix(data, magic) {
		return nil, ErrBadMagic
	}
	if v := data[len(magic)]; v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	var u unit.Unit
	if err := decMode.Unmarshal(data[len(magic)+1:], &u); err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}
	if u.Name == "" {
		return nil, fmt.Errorf("decode unit: missing name")
	}
	return &u, nil
}

// Read decodes a unit from r.
func Read(r io.Reader) (*unit.Unit, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
