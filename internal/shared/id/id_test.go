package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{SessionPrefix, ContainerPrefix, RequestPrefix} {
		id := gen.GenerateWithPrefix(prefix)
		parts := strings.Split(id, "_")
		require.Len(t, parts, 2, id)
		assert.Equal(t, prefix, parts[0])
		assert.True(t, IsValid(parts[1]), id)
	}
}

func TestTypedIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewSessionID().String(), "sess_"))
	assert.True(t, strings.HasPrefix(NewContainerID().String(), "ctr_"))
	assert.True(t, strings.HasPrefix(NewRequestID().String(), "req_"))
}

func TestParseSessionID(t *testing.T) {
	valid := NewSessionID()
	parsed, err := ParseSessionID(valid.String())
	require.NoError(t, err)
	assert.Equal(t, valid, parsed)

	for _, bad := range []string{"", "sess_", "sess_nope", "ctr_" + NewGenerator().GenerateString(), "../etc/passwd"} {
		_, err := ParseSessionID(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now()
	id := NewSessionID()
	after := time.Now()

	ts, err := Timestamp(id.String())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts.UnixMilli(), before.UnixMilli())
	assert.LessOrEqual(t, ts.UnixMilli(), after.UnixMilli())
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	ids := make(chan string, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				ids <- gen.GenerateString()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestLexicographicSorting(t *testing.T) {
	gen := NewGenerator()

	prev := gen.GenerateString()
	for i := 0; i < 4; i++ {
		time.Sleep(2 * time.Millisecond)
		next := gen.GenerateString()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func BenchmarkGenerateWithPrefix(b *testing.B) {
	gen := NewGenerator()
	for i := 0; i < b.N; i++ {
		_ = gen.GenerateWithPrefix(SessionPrefix)
	}
}

func TestGenerateIsOrdered(t *testing.T) {
	gen := NewGenerator()
	prev := gen.GenerateString()
	for range 100 {
		next := gen.GenerateString()
		assert.Less(t, prev, next)
		prev = next
	}
}
