// Package arc issues Administrative Reference Codes for consignments.
//
// An ARC is year(2) + jurisdiction(2) + random digits(16) + check digit(1).
// The check digit is a Luhn checksum adapted to alphanumeric input.
package arc

import (
	"fmt"
	"strings"
)

const (
	randomDigits = 16
	// CodeLength is the length of codes minted by Generator.
	CodeLength = 2 + 2 + randomDigits + 1

	minWellFormedLength = 10
	maxWellFormedLength = 30
)

// Code is an issued Administrative Reference Code. Immutable once issued.
type Code string

func (c Code) String() string {
	return string(c)
}

// charValue maps 0-9 to themselves and A-Z to 10-35.
func charValue(ch byte) (int, error) {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0'), nil
	case ch >= 'A' && ch <= 'Z':
		return int(ch-'A') + 10, nil
	default:
		return 0, fmt.Errorf("invalid character %q in reference code", ch)
	}
}

// Checksum computes the check digit for candidate. Walking right to left,
// every second value starting with the rightmost is doubled and reduced by 9
// when it exceeds 9; the digit is (10 - sum mod 10) mod 10.
func Checksum(candidate string) (int, error) {
	if candidate == "" {
		return 0, fmt.Errorf("empty reference code candidate")
	}
	sum := 0
	double := true
	for i := len(candidate) - 1; i >= 0; i-- {
		v, err := charValue(candidate[i])
		if err != nil {
			return 0, err
		}
		if double {
			v *= 2
			if v > 9 {
				v -= 9
			}
		}
		sum += v
		double = !double
	}
	return (10 - sum%10) % 10, nil
}

// IsWellFormed checks structural shape only: ASCII letters of either case
// and digits, length 10 to 30. It deliberately does not verify the check
// digit; codes issued by other offices in the movement chain are accepted on
// shape alone. Use VerifyChecksum for the strict check.
func IsWellFormed(code string) bool {
	if len(code) < minWellFormedLength || len(code) > maxWellFormedLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if _, err := charValue(upper(code[i])); err != nil {
			return false
		}
	}
	return true
}

func upper(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		return ch - 'a' + 'A'
	}
	return ch
}

// VerifyChecksum reports whether the last character of code is the check
// digit of the preceding characters.
func VerifyChecksum(code string) bool {
	if !IsWellFormed(code) {
		return false
	}
	code = strings.ToUpper(code)
	last := code[len(code)-1]
	if last < '0' || last > '9' {
		return false
	}
	want, err := Checksum(code[:len(code)-1])
	if err != nil {
		return false
	}
	return int(last-'0') == want
}
