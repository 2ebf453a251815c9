package accounting

import (
	"sync"
	"testing"
)

func TestUserLocksSerializeSameUser(t *testing.T) {
	locks := newUserLocks()
	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("u1")
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("%d goroutines held the same user lock at once", maxInside)
	}
	if locks.size() != 0 {
		t.Errorf("lock map not cleaned up: %d entries", locks.size())
	}
}
