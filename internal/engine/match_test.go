package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func never(a, b string) bool { return false }

func metFromPairs(pairs ...[2]string) func(a, b string) bool {
	met := make(map[[2]string]bool)
	for _, p := range pairs {
		met[[2]string{p[0], p[1]}] = true
		met[[2]string{p[1], p[0]}] = true
	}
	return func(a, b string) bool { return met[[2]string{a, b}] }
}

func assertDisjointCover(t *testing.T, ids []string, groups [][]string) {
	t.Helper()
	seen := make(map[string]bool)
	for _, g := range groups {
		require.Contains(t, []int{2, 3}, len(g))
		for _, id := range g {
			assert.False(t, seen[id], "id %s appears in more than one group", id)
			seen[id] = true
			assert.Contains(t, ids, id)
		}
	}
	assert.Len(t, seen, len(ids), "every eligible id must land in exactly one group")
}

func TestPartition(t *testing.T) {
	t.Run("degenerate pools produce no groups", func(t *testing.T) {
		assert.Nil(t, partition(nil, never))
		assert.Nil(t, partition([]string{"a"}, never))
	})

	t.Run("even pool pairs everyone", func(t *testing.T) {
		ids := []string{"a", "b", "c", "d", "e", "f"}
		groups := partition(ids, never)

		assert.Len(t, groups, 3)
		assertDisjointCover(t, ids, groups)
	})

	t.Run("odd pool forms exactly one triple", func(t *testing.T) {
		ids := []string{"a", "b", "c", "d", "e"}
		groups := partition(ids, never)

		triples := 0
		for _, g := range groups {
			if len(g) == 3 {
				triples++
			}
		}
		assert.Equal(t, 1, triples)
		assertDisjointCover(t, ids, groups)
	})

	t.Run("avoids met partners when a fresh one exists", func(t *testing.T) {
		ids := []string{"a", "b", "c", "d"}
		groups := partition(ids, metFromPairs([2]string{"a", "b"}))

		assertDisjointCover(t, ids, groups)
		for _, g := range groups {
			if len(g) == 2 {
				assert.False(t, g[0] == "a" && g[1] == "b")
			}
		}
	})

	t.Run("two exhausted participants still pair up", func(t *testing.T) {
		groups := partition([]string{"a", "b"}, metFromPairs([2]string{"a", "b"}))

		require.Len(t, groups, 1)
		assert.ElementsMatch(t, []string{"a", "b"}, groups[0])
	})

	t.Run("forced triple falls back to first three in order", func(t *testing.T) {
		ids := []string{"a", "b", "c"}
		allMet := metFromPairs([2]string{"a", "b"}, [2]string{"a", "c"}, [2]string{"b", "c"})
		groups := partition(ids, allMet)

		require.Len(t, groups, 1)
		assert.Equal(t, []string{"a", "b", "c"}, groups[0])
	})

	t.Run("leftovers pair off despite shared history", func(t *testing.T) {
		// a has met everyone; the greedy pass strands it, the fallback
		// pass must not.
		ids := []string{"a", "b", "c", "d"}
		groups := partition(ids, metFromPairs(
			[2]string{"a", "b"}, [2]string{"a", "c"}, [2]string{"a", "d"},
		))

		assertDisjointCover(t, ids, groups)
	})
}

func TestFreshTriple(t *testing.T) {
	t.Run("first pairwise-unmet triple wins", func(t *testing.T) {
		ids := []string{"a", "b", "c", "d"}
		triple := freshTriple(ids, metFromPairs([2]string{"a", "b"}))

		assert.Equal(t, []string{"a", "c", "d"}, triple)
	})

	t.Run("nil when history rules out every triple", func(t *testing.T) {
		allMet := func(a, b string) bool { return true }
		assert.Nil(t, freshTriple([]string{"a", "b", "c", "d"}, allMet))
	})
}

func TestPartitionFuzz(t *testing.T) {
	rng := rand.New(rand.NewSource(7<<32 | 11))

	for round := 0; round < 200; round++ {
		n := 2 + rng.Intn(30)
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('A' + i%26)) + string(rune('a'+i/26))
		}

		met := make(map[[2]string]bool)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rng.Intn(3) == 0 {
					met[[2]string{ids[i], ids[j]}] = true
					met[[2]string{ids[j], ids[i]}] = true
				}
			}
		}

		groups := partition(ids, func(a, b string) bool {
			return met[[2]string{a, b}]
		})
		assertDisjointCover(t, ids, groups)
	}
}
