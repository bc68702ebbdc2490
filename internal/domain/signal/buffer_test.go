package signal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcm(v float64) PCMSample {
	return PCMSample{Timestamp: time.Now(), Value: v}
}

func TestBuffer_PushAndSnapshot(t *testing.T) {
	b := NewBuffer[float64](5)

	for i := 0; i < 3; i++ {
		b.Push(pcm(float64(i)))
	}

	assert.Equal(t, 3, b.Len())
	assert.False(t, b.IsFull())

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	for i, s := range snap {
		assert.Equal(t, float64(i), s.Value)
	}
}

func TestBuffer_EvictsOldestFIFO(t *testing.T) {
	b := NewBuffer[float64](4)

	for i := 0; i < 10; i++ {
		b.Push(pcm(float64(i)))
	}

	assert.Equal(t, 4, b.Len())
	assert.True(t, b.IsFull())

	snap := b.Snapshot()
	require.Len(t, snap, 4)
	// survivors are the newest four, oldest first
	assert.Equal(t, []float64{6, 7, 8, 9}, []float64{
		snap[0].Value, snap[1].Value, snap[2].Value, snap[3].Value,
	})
}

func TestBuffer_NeverExceedsCapacity(t *testing.T) {
	b := NewBuffer[float64](7)

	for i := 0; i < 1000; i++ {
		b.Push(pcm(float64(i)))
		assert.LessOrEqual(t, b.Len(), b.Cap())
	}
}

func TestBuffer_SnapshotIsolation(t *testing.T) {
	b := NewBuffer[float64](3)
	b.Push(pcm(1))
	b.Push(pcm(2))

	snap := b.Snapshot()
	b.Push(pcm(3))
	b.Push(pcm(4))

	// the earlier snapshot is unaffected by later pushes
	require.Len(t, snap, 2)
	assert.Equal(t, 1.0, snap[0].Value)
	assert.Equal(t, 2.0, snap[1].Value)
}

func TestBuffer_Clear(t *testing.T) {
	b := NewBuffer[float64](3)
	b.Push(pcm(1))
	b.Push(pcm(2))

	b.Clear()

	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Snapshot())
	assert.Equal(t, 3, b.Cap())
}

func TestBuffer_ConcurrentPushSnapshot(t *testing.T) {
	b := NewBuffer[float64](64)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				b.Push(pcm(float64(i)))
			}
		}
	}()

	for i := 0; i < 100; i++ {
		snap := b.Snapshot()
		assert.LessOrEqual(t, len(snap), b.Cap())
		// samples within one snapshot stay in push order
		for j := 1; j < len(snap); j++ {
			assert.GreaterOrEqual(t, snap[j].Value, snap[j-1].Value)
		}
	}

	close(stop)
	wg.Wait()
}

func TestBuffer_RGBSamples(t *testing.T) {
	b := NewBuffer[RGB](2)
	b.Push(RGBSample{Timestamp: time.Now(), Value: RGB{R: 120, G: 80, B: 60}})

	snap := b.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 80.0, snap[0].Value.G)
}
