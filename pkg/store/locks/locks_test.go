package locks

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameNameSameLock(t *testing.T) {
	assert.Same(t, Channel("general"), Channel("general"))
	assert.NotSame(t, Channel("general"), Channel("random"))
	assert.NotSame(t, Channel("x"), Message("x"))
}

func TestChannelLockSerialises(t *testing.T) {
	var wg sync.WaitGroup
	n := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := Channel("counter")
			l.Lock()
			n++
			l.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, n)
}
