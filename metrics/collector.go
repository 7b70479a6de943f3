// Package metrics exports kvcore memory statistics to Prometheus.
//
// Allocators and maps are owned by one goroutine and must not be read from a
// scrape goroutine, so the owner publishes snapshots into a Collector and the
// Collector serves the last published values:
//
//	c := metrics.NewCollector("kvcore", prometheus.Labels{"shard": "0"})
//	prometheus.MustRegister(c)
//
//	// on the owning goroutine, e.g. after each batch of writes
//	c.PublishHeap(heap.Stats())
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/kvcore/alloc"
)

// Collector is a prometheus.Collector over published snapshots. Publish
// methods and Collect may run concurrently.
type Collector struct {
	allocated   atomic.Int64
	committed   atomic.Int64
	liveBlocks  atomic.Int64
	pages       atomic.Int64
	mapEntries  atomic.Int64
	mapBytes    atomic.Int64
	defragMoves atomic.Int64

	allocatedDesc   *prometheus.Desc
	committedDesc   *prometheus.Desc
	liveBlocksDesc  *prometheus.Desc
	pagesDesc       *prometheus.Desc
	utilizationDesc *prometheus.Desc
	mapEntriesDesc  *prometheus.Desc
	mapBytesDesc    *prometheus.Desc
	defragDesc      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector whose metric names start with namespace.
func NewCollector(namespace string, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, constLabels)
	}

	return &Collector{
		allocatedDesc:   desc("heap_allocated_bytes", "Usable bytes of live allocator blocks."),
		committedDesc:   desc("heap_committed_bytes", "Bytes of pages held by the allocator."),
		liveBlocksDesc:  desc("heap_live_blocks", "Number of live allocator blocks."),
		pagesDesc:       desc("heap_pages", "Number of pages held by the allocator."),
		utilizationDesc: desc("heap_utilization_ratio", "Allocated bytes divided by committed bytes."),
		mapEntriesDesc:  desc("map_entries", "Number of field/value entries across published maps."),
		mapBytesDesc:    desc("map_alloc_bytes", "Allocator bytes held by published map entries."),
		defragDesc:      desc("defrag_moves_total", "Heap values relocated by defragmentation."),
	}
}

// PublishHeap records an allocator snapshot.
func (c *Collector) PublishHeap(s alloc.Stats) {
	c.allocated.Store(s.AllocatedBytes)
	c.committed.Store(s.CommittedBytes)
	c.liveBlocks.Store(s.LiveBlocks)
	c.pages.Store(int64(s.Pages))
}

// PublishMap records the entry count and entry bytes of the maps the owner
// tracks.
func (c *Collector) PublishMap(entries int, allocBytes int64) {
	c.mapEntries.Store(int64(entries))
	c.mapBytes.Store(allocBytes)
}

// AddDefragMoves counts relocated values.
func (c *Collector) AddDefragMoves(n int) {
	c.defragMoves.Add(int64(n))
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocatedDesc
	ch <- c.committedDesc
	ch <- c.liveBlocksDesc
	ch <- c.pagesDesc
	ch <- c.utilizationDesc
	ch <- c.mapEntriesDesc
	ch <- c.mapBytesDesc
	ch <- c.defragDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	allocated := c.allocated.Load()
	committed := c.committed.Load()

	utilization := 0.0
	if committed > 0 {
		utilization = float64(allocated) / float64(committed)
	}

	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	gauge(c.allocatedDesc, float64(allocated))
	gauge(c.committedDesc, float64(committed))
	gauge(c.liveBlocksDesc, float64(c.liveBlocks.Load()))
	gauge(c.pagesDesc, float64(c.pages.Load()))
	gauge(c.utilizationDesc, utilization)
	gauge(c.mapEntriesDesc, float64(c.mapEntries.Load()))
	gauge(c.mapBytesDesc, float64(c.mapBytes.Load()))
	ch <- prometheus.MustNewConstMetric(c.defragDesc, prometheus.CounterValue, float64(c.defragMoves.Load()))
}
