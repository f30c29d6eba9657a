package competency

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportCountsEveryFailureButKeepsFew(t *testing.T) {
	r := NewReport("c1")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Fail(StageExtract, fmt.Errorf("doc %d", i))
		}(i)
	}
	wg.Wait()
	r.Succeed(StageExtract)
	r.Skip(StageRelate)
	r.Add(StageMatch, 2, 1)

	require.Equal(t, StageCounts{Succeeded: 1, Failed: 20}, r.Get(StageExtract))
	require.Len(t, r.Failures, MaxReportedFailures)
	require.Equal(t, StageCounts{Succeeded: 3, Skipped: 2, Failed: 20}, r.Totals())
	require.Contains(t, r.String(), "extract")
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := NewKeyedMutex()
	var (
		inside int32
		wg     sync.WaitGroup
		errs   = make(chan error, 50)
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("course")
			defer unlock()
			if atomic.AddInt32(&inside, 1) != 1 {
				errs <- errors.New("two holders")
			}
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// other keys are independent
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	unlockB()
	unlockA()
	require.Empty(t, k.locks)
}
