package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaddleNumberDeterministic(t *testing.T) {
	a, err := NewPaddleAssigner(100, 1000)
	require.NoError(t, err)

	identities := []string{
		"d8f1c6a2-41a3-4b9e-8f12-0c6a7b2e9d01",
		"participant-42",
		"",
	}
	for _, id := range identities {
		first := a.PaddleNumber(id)
		for i := 0; i < 10; i++ {
			require.Equal(t, first, a.PaddleNumber(id))
		}
	}
}

func TestPaddleNumberWithinRange(t *testing.T) {
	a, err := NewPaddleAssigner(100, 1000)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		n := a.PaddleNumber(string(rune(i)) + "-participant")
		require.GreaterOrEqual(t, n, 100)
		require.Less(t, n, 1000)
	}
}

func TestPaddleNumberDistinctIdentitiesUsuallyDiffer(t *testing.T) {
	a, err := NewPaddleAssigner(100, 1000)
	require.NoError(t, err)

	// Not a uniqueness guarantee, just a sanity check that the hash is not
	// collapsing the range.
	seen := make(map[int]bool)
	for _, id := range []string{"alice", "bob", "carol", "dave", "erin"} {
		seen[a.PaddleNumber(id)] = true
	}
	require.Greater(t, len(seen), 1)
}

func TestPaddleAssignerRejectsBadRange(t *testing.T) {
	_, err := NewPaddleAssigner(1000, 100)
	require.Error(t, err)

	_, err = NewPaddleAssigner(100, 100)
	require.Error(t, err)

	_, err = NewPaddleAssigner(-5, 10)
	require.Error(t, err)
}
