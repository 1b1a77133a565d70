package ring

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIDDeterministic(t *testing.T) {
	a, err := HashID([]byte("node-a:6501"), 4)
	require.NoError(t, err)
	b, err := HashID([]byte("node-a:6501"), 4)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	c, err := HashID([]byte("node-b:6501"), 4)
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
}

func TestHashIDRejectsBadWidth(t *testing.T) {
	_, err := HashID([]byte("x"), 0)
	assert.Error(t, err)
	_, err = HashID([]byte("x"), 21)
	assert.Error(t, err)
}

func idFromInt(v int64, width int) ID {
	return padTo(big.NewInt(v), width)
}

func TestBetweenLinearScanAgreement(t *testing.T) {
	const width = 1 // 8-bit ring for an exhaustive scan
	const ringSize = 256

	for a := 0; a < ringSize; a += 17 {
		for b := 0; b < ringSize; b += 23 {
			for _, inclusiveB := range []bool{true, false} {
				aID := idFromInt(int64(a), width)
				bID := idFromInt(int64(b), width)
				for x := 0; x < ringSize; x++ {
					xID := idFromInt(int64(x), width)
					got := Between(xID, aID, bID, inclusiveB)
					want := linearBetween(x, a, b, inclusiveB)
					if got != want {
						t.Fatalf("Between(%d, %d, %d, inclusiveB=%v) = %v, want %v", x, a, b, inclusiveB, got, want)
					}
				}
			}
		}
	}
}

// linearBetween is a brute-force reference: walk the arc clockwise from a
// (exclusive) and stop at b (inclusive or exclusive per flag).
func linearBetween(x, a, b int, inclusiveB bool) bool {
	if a == b {
		return x != a
	}
	const ringSize = 256
	i := (a + 1) % ringSize
	for steps := 0; steps < ringSize; steps++ {
		if i == b {
			return inclusiveB && x == i
		}
		if x == i {
			return true
		}
		i = (i + 1) % ringSize
	}
	return false
}

func TestBetweenSingleNodeRing(t *testing.T) {
	self := idFromInt(42, 2)
	other := idFromInt(7, 2)
	assert.True(t, Between(other, self, self, true))
	assert.False(t, Between(self, self, self, true))
}

func TestAddPow2Wraps(t *testing.T) {
	width := 1 // 8-bit ring
	id := idFromInt(250, width)
	got := AddPow2(id, 3) // +8 mod 256 = 2
	want := idFromInt(2, width)
	assert.True(t, got.Equal(want))
}
