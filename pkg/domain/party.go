package domain

import (
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "emcs/pkg/domain-errors"
)

// partyAddressHexLen is the number of hex digits after the 0x prefix.
const partyAddressHexLen = 64

// PartyID is a ledger account address identifying a consignor, consignee or
// operator. Addresses are normalized to lowercase at parse time so identity
// checks are plain string equality.
type PartyID string

// ParsePartyID validates an address of the form 0x followed by 64 hex digits.
func ParsePartyID(s string) (PartyID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "party address is required")
	}
	hex, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, "party address must start with 0x")
	}
	if len(hex) != partyAddressHexLen || !govalidator.IsHexadecimal(hex) {
		return "", dErrors.New(dErrors.CodeValidation, "party address must be 0x followed by 64 hex characters")
	}
	return PartyID(s), nil
}

// MustParsePartyID panics on malformed input. Intended for seeds and tests.
func MustParsePartyID(s string) PartyID {
	p, err := ParsePartyID(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p PartyID) String() string {
	return string(p)
}

func (p PartyID) IsNil() bool {
	return p == ""
}
