package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/kvcore/alloc"
)

func gather(t *testing.T, c *Collector) map[string]float64 {
	t.Helper()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	mfs, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64, len(mfs))
	for _, mf := range mfs {
		require.Len(t, mf.GetMetric(), 1, mf.GetName())
		m := mf.GetMetric()[0]
		if g := m.GetGauge(); g != nil {
			out[mf.GetName()] = g.GetValue()
		} else {
			out[mf.GetName()] = m.GetCounter().GetValue()
		}
	}

	return out
}

func TestCollector_Empty(t *testing.T) {
	got := gather(t, NewCollector("kvcore", nil))

	require.Len(t, got, 8)
	for name, v := range got {
		require.Zero(t, v, name)
	}
}

func TestCollector_Published(t *testing.T) {
	c := NewCollector("kvcore", prometheus.Labels{"shard": "3"})
	c.PublishHeap(alloc.Stats{AllocatedBytes: 1024, CommittedBytes: 4096, LiveBlocks: 8, Pages: 1})
	c.PublishMap(5, 320)
	c.AddDefragMoves(2)
	c.AddDefragMoves(3)

	got := gather(t, c)
	require.InDelta(t, 1024, got["kvcore_heap_allocated_bytes"], 0)
	require.InDelta(t, 4096, got["kvcore_heap_committed_bytes"], 0)
	require.InDelta(t, 8, got["kvcore_heap_live_blocks"], 0)
	require.InDelta(t, 1, got["kvcore_heap_pages"], 0)
	require.InDelta(t, 0.25, got["kvcore_heap_utilization_ratio"], 1e-9)
	require.InDelta(t, 5, got["kvcore_map_entries"], 0)
	require.InDelta(t, 320, got["kvcore_map_alloc_bytes"], 0)
	require.InDelta(t, 5, got["kvcore_defrag_moves_total"], 0)
}

func TestCollector_FromHeap(t *testing.T) {
	heap, err := alloc.New()
	require.NoError(t, err)

	ref, _, err := heap.Alloc(100)
	require.NoError(t, err)

	c := NewCollector("", nil)
	c.PublishHeap(heap.Stats())
	got := gather(t, c)
	require.InDelta(t, float64(alloc.ClassSize(100)), got["heap_allocated_bytes"], 0)
	require.InDelta(t, float64(alloc.DefaultPageSize), got["heap_committed_bytes"], 0)

	heap.Free(ref)
}
