package tokenref

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInvalidRef     = errors.New("tokenref: invalid reference")
	ErrInvalidTokenID = errors.New("tokenref: invalid token id")
)

// Ref identifies a token hosted by a registry, possibly a different registry than the
// one holding the reference.
//
// Ref is a plain value: it is comparable, usable as a map key, and carries no ownership
// semantics of its own. The zero Ref means "no token" and is what IsLocked reports for an
// unlocked token.
//
// Textual form:
//
//	<registry address>/<decimal token id>
//	0x00000000000000000000000000000000000000aa/42
type Ref struct {
	Registry common.Address
	Token    uint256.Int
}

// New builds a Ref from a registry address and a token id. A nil id is treated as zero.
func New(registry common.Address, id *uint256.Int) Ref {
	ref := Ref{Registry: registry}
	if id != nil {
		ref.Token = *id
	}
	return ref
}

// ID returns a copy of the referenced token id.
func (r Ref) ID() *uint256.Int {
	id := r.Token
	return &id
}

// IsZero reports whether r is the empty reference.
func (r Ref) IsZero() bool {
	return r == Ref{}
}

// String returns the "<registry>/<token>" form.
func (r Ref) String() string {
	return r.Registry.Hex() + "/" + r.Token.Dec()
}

type refJSON struct {
	Registry common.Address `json:"registry"`
	Token    string         `json:"token"`
}

// MarshalJSON serializes the reference with the token id as a decimal string.
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(refJSON{Registry: r.Registry, Token: r.Token.Dec()})
}

// UnmarshalJSON parses {"registry": "0x..", "token": "<decimal or 0x-hex>"}.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw refJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := ParseTokenID(raw.Token)
	if err != nil {
		return err
	}

	// Wipe existing data to prevent dirty reads if reusing the struct
	*r = Ref{Registry: raw.Registry, Token: *id}
	return nil
}

// Parse reads the "<registry>/<token>" form.
func Parse(s string) (Ref, error) {
	registry, token, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q is missing the /<token> part", ErrInvalidRef, s)
	}
	if !common.IsHexAddress(registry) {
		return Ref{}, fmt.Errorf("%w: %q is not a registry address", ErrInvalidRef, registry)
	}
	id, err := ParseTokenID(token)
	if err != nil {
		return Ref{}, err
	}
	return New(common.HexToAddress(registry), id), nil
}

// ParseTokenID accepts a decimal id or a 0x-prefixed hex id.
func ParseTokenID(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTokenID)
	}

	var (
		id  *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err = uint256.FromHex("0x" + s[2:])
	} else {
		id, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTokenID, s, err)
	}
	return id, nil
}
