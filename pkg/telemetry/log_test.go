package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCapacityEvictsOldestFirst(t *testing.T) {
	log := NewLog(DefaultCapacity)

	for i := 0; i < 250; i++ {
		log.Record(Entry{TaskID: fmt.Sprintf("t%d", i), ModelID: "m", OK: true})
	}

	entries := log.Entries()
	require.Len(t, entries, DefaultCapacity)
	assert.Equal(t, "t50", entries[0].TaskID)
	assert.Equal(t, "t249", entries[len(entries)-1].TaskID)
	assert.Equal(t, DefaultCapacity, log.Len())
}

func TestLogAssignsIDAndTimestamp(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	log := NewLog(3, WithNow(func() time.Time { return at }))

	e := log.Record(Entry{TaskID: "topic_map"})
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, at, e.Timestamp)

	other := log.Record(Entry{TaskID: "topic_map"})
	assert.NotEqual(t, e.ID, other.ID)
}

func TestLogNonPositiveCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewLog(0).Capacity())
}

func TestLogConcurrentRecord(t *testing.T) {
	log := NewLog(50)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				log.Record(Entry{TaskID: "x"})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, log.Len())
}
