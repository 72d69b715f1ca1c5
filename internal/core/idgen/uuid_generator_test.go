package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"lifekit-core/internal/constants"
)

func TestUUIDGenerator_Generate(t *testing.T) {
	gen := NewUUIDGenerator(constants.IDPrefixResource)

	id, err := gen.Generate()
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, constants.IDPrefixResource))
	assert.Len(t, id, len(constants.IDPrefixResource)+36) // prefix + UUID format
}

func TestUUIDGenerator_GenerateUnique(t *testing.T) {
	gen := NewUUIDGenerator(constants.IDPrefixSubscription)

	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id, err := gen.Generate()
		assert.NoError(t, err)
		assert.False(t, seen[id], "duplicate ID generated: %s", id)
		seen[id] = true
	}
}

func TestUUIDGenerator_Concurrent(t *testing.T) {
	gen := NewUUIDGenerator(constants.IDPrefixGroup)

	var wg sync.WaitGroup
	ids := make(chan string, 1000)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				id, err := gen.Generate()
				assert.NoError(t, err)
				ids <- id
			}
		}()
	}

	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate ID in concurrent generation: %s", id)
		seen[id] = true
	}
}

func TestSequenceGenerator_Deterministic(t *testing.T) {
	gen := NewSequenceGenerator(constants.IDPrefixResource)

	first, err := gen.Generate()
	assert.NoError(t, err)
	assert.Equal(t, "res_1", first)

	second, err := gen.Generate()
	assert.NoError(t, err)
	assert.Equal(t, "res_2", second)
}

func TestSequenceGenerator_Concurrent(t *testing.T) {
	gen := NewSequenceGenerator("seq_")

	var wg sync.WaitGroup
	ids := make(chan string, 1000)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				id, err := gen.Generate()
				assert.NoError(t, err)
				ids <- id
			}
		}()
	}

	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate sequence ID: %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 1000)
}

func BenchmarkUUIDGenerator_Generate(b *testing.B) {
	gen := NewUUIDGenerator(constants.IDPrefixResource)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = gen.Generate()
	}
}
