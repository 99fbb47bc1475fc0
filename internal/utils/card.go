package utils

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// CardNumberLength is the number of digits in an issued card number
	CardNumberLength = 16
	// CardValidityYears is how long an issued card stays valid
	CardValidityYears = 3

	maskPrefix = "**** **** **** "
)

// RandomDigits reads n uniformly distributed decimal digits from r.
// Bytes >= 250 are discarded so that every digit has the same probability.
func RandomDigits(r io.Reader, n int) (string, error) {
	var builder strings.Builder
	builder.Grow(n)

	buf := make([]byte, n)
	for builder.Len() < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to generate random digits: %w", err)
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			builder.WriteByte(b%10 + '0')
			if builder.Len() == n {
				break
			}
		}
	}
	return builder.String(), nil
}

// LuhnCheckDigit computes the digit that makes payload+digit pass the Luhn check.
// The rightmost payload digit is doubled first.
func LuhnCheckDigit(payload string) (int, error) {
	sum := 0
	double := true
	for i := len(payload) - 1; i >= 0; i-- {
		c := payload[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit character %q at position %d", c, i)
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10, nil
}

// ValidLuhn reports whether number consists only of digits and passes the Luhn check
func ValidLuhn(number string) bool {
	if len(number) < 2 {
		return false
	}
	check, err := LuhnCheckDigit(number[:len(number)-1])
	if err != nil {
		return false
	}
	last := number[len(number)-1]
	return last >= '0' && last <= '9' && int(last-'0') == check
}

// GenerateCardNumber generates a 16-digit Luhn-valid card number: 15 random
// digits followed by the check digit.
func GenerateCardNumber(r io.Reader) (string, error) {
	payload, err := RandomDigits(r, CardNumberLength-1)
	if err != nil {
		return "", err
	}
	check, err := LuhnCheckDigit(payload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", payload, check), nil
}

// MaskCardNumber hides everything but the last four characters.
// Values shorter than four characters are appended as they are.
func MaskCardNumber(number string) string {
	last4 := number
	if len(number) >= 4 {
		last4 = number[len(number)-4:]
	}
	return maskPrefix + last4
}

// ExpirationDate returns the expiration date of a card issued at now (date only, UTC)
func ExpirationDate(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	exp := time.Date(y+CardValidityYears, m, d, 0, 0, 0, 0, time.UTC)
	if exp.Month() != m {
		// Feb 29 rolls back to the last day of February
		exp = time.Date(y+CardValidityYears, m+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return exp
}
