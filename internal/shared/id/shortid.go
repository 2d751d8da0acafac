// Package id generates the public, prefixed identifiers exposed for local
// entities, e.g. "subscr_4fK9mP2vL3nQ".
package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Length of the random part of every SID.
	Length = 12
)

// Prefixes must not collide with provider prefixes such as "sub" or "pi".
const (
	PrefixSubscription = "subscr"
	PrefixPayment      = "pmt"
	PrefixNotification = "ntf"
)

func randomBase62(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

func newSID(prefix string) (string, error) {
	s, err := randomBase62(Length)
	if err != nil {
		return "", err
	}
	return prefix + "_" + s, nil
}

func NewSubscriptionSID() (string, error) { return newSID(PrefixSubscription) }

func NewPaymentSID() (string, error) { return newSID(PrefixPayment) }

func NewNotificationSID() (string, error) { return newSID(PrefixNotification) }
