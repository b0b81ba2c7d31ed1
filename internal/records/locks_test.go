package records

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopeLocksSerializePerScope(t *testing.T) {
	locks := NewScopeLocks()
	counters := map[string]*int{"a": new(int), "b": new(int)}
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		scope := "a"
		if i%2 == 1 {
			scope = "b"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(scope)
			// Unsynchronized read-modify-write; only the scope lock protects it.
			v := *counters[scope]
			*counters[scope] = v + 1
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 100, *counters["a"])
	require.Equal(t, 100, *counters["b"])
	require.Zero(t, locks.Len())
}
