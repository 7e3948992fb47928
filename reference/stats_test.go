package reference_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachecheck/cache"
	"github.com/sarchlab/cachecheck/reference"
)

var _ = Describe("StatsSchema", func() {
	schema := reference.SchemaV1

	It("should parse the named statistics line", func() {
		stats, err := schema.Parse(
			"hits:4 misses:3 evictions:1 dirty_bytes_in_cache:8 dirty_bytes_evicted:16")
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(Equal(cache.Stats{
			Hits: 4, Misses: 3, Evictions: 1,
			DirtyBytesInCache: 8, DirtyBytesEvicted: 16,
		}))
	})

	It("should parse five unnamed integers in order", func() {
		stats, err := schema.Parse("hits: 1, 2, 3, 4, 5")
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Values()).To(Equal([5]uint64{1, 2, 3, 4, 5}))
	})

	It("should fail on too few integers", func() {
		_, err := schema.Parse("hits:1 misses:2 evictions:3 dirty_bytes_in_cache:4")
		Expect(err).To(MatchError(reference.ErrStatsFieldCount))
	})

	It("should fail on too many integers", func() {
		_, err := schema.Parse("hits:1 misses:2 evictions:3 4 5 6")
		Expect(err).To(MatchError(reference.ErrStatsFieldCount))
	})

	It("should fail when named fields are out of order", func() {
		_, err := schema.Parse(
			"hits:1 evictions:2 misses:3 dirty_bytes_in_cache:4 dirty_bytes_evicted:5")
		Expect(err).To(MatchError(reference.ErrStatsFieldName))
	})

	It("should format a line it can parse back", func() {
		want := cache.Stats{Hits: 9, Misses: 8, Evictions: 7, DirtyBytesInCache: 6, DirtyBytesEvicted: 5}

		var buf bytes.Buffer
		Expect(schema.Format(&buf, want)).To(Succeed())
		Expect(buf.String()).To(Equal(
			"hits:9 misses:8 evictions:7 dirty_bytes_in_cache:6 dirty_bytes_evicted:5\n"))

		Expect(schema.IsStatsLine(buf.String())).To(BeTrue())
		got, err := schema.Parse(buf.String())
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
	})
})
