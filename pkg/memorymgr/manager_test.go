package memorymgr_test

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusai/querycore/pkg/memorymgr"
)

func TestAllocateWithinCapacity(t *testing.T) {
	m := memorymgr.New(1000, 200)
	assert.True(t, m.Allocate("mod-a", 300))
	assert.Equal(t, 500, m.Available()) // 1000 - 200 baseline - 300
}

func TestAllocateRejectsOversubscription(t *testing.T) {
	m := memorymgr.New(1000, 200)
	assert.True(t, m.Allocate("mod-a", 700))
	assert.False(t, m.Allocate("mod-b", 200)) // only 100 left
	assert.Equal(t, 100, m.Available())
}

func TestReleaseFreesReservation(t *testing.T) {
	m := memorymgr.New(1000, 200)
	m.Allocate("mod-a", 300)
	m.Release("mod-a")
	assert.Equal(t, 800, m.Available())
}

func TestPressureClampedToOne(t *testing.T) {
	m := memorymgr.New(100, 50)
	m.Allocate("mod-a", 60) // would only allow up to 50 (available before alloc: 50)
	assert.LessOrEqual(t, m.Pressure(), 1.0)
}

// TestConcurrentAllocateNeverOversubscribes exercises P1: for any
// interleaving of allocate/release, total reserved never exceeds capacity.
func TestConcurrentAllocateNeverOversubscribes(t *testing.T) {
	m := memorymgr.New(1000, 0)
	var wg sync.WaitGroup
	successes := make([]bool, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			successes[i] = m.Allocate(nameFor(i), 30)
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	assert.LessOrEqual(t, m.TotalReservedMB(), 1000)
	assert.LessOrEqual(t, count*30, 1000)
}

func nameFor(i int) string {
	return "mod-" + strconv.Itoa(i)
}
