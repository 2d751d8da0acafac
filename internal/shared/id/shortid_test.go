package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSIDs(t *testing.T) {
	gens := map[string]func() (string, error){
		PrefixSubscription: NewSubscriptionSID,
		PrefixPayment:      NewPaymentSID,
		PrefixNotification: NewNotificationSID,
	}

	for prefix, gen := range gens {
		t.Run(prefix, func(t *testing.T) {
			sid, err := gen()
			require.NoError(t, err)

			rest, ok := strings.CutPrefix(sid, prefix+"_")
			require.True(t, ok, sid)
			assert.Len(t, rest, Length)
			for _, r := range rest {
				assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q in %s", r, sid)
			}
		})
	}
}

func TestNewSIDs_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		sid, err := NewPaymentSID()
		require.NoError(t, err)
		_, dup := seen[sid]
		require.False(t, dup, sid)
		seen[sid] = struct{}{}
	}
}

func FuzzRandomBase62(f *testing.F) {
	f.Add(1)
	f.Add(Length)
	f.Add(64)

	f.Fuzz(func(t *testing.T, length int) {
		if length <= 0 || length > 256 {
			t.Skip()
		}
		s, err := randomBase62(length)
		if err != nil {
			t.Fatal(err)
		}
		if len(s) != length {
			t.Fatalf("len = %d, want %d", len(s), length)
		}
		if strings.Trim(s, alphabet) != "" {
			t.Fatalf("non-alphabet characters in %q", s)
		}
	})
}
