package reference_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachecheck/cache"
	"github.com/sarchlab/cachecheck/geometry"
	"github.com/sarchlab/cachecheck/reference"
)

const sampleOutput = `L 10,1 miss
L 20,1 miss eviction
S 20,1 hit
L 10,1 miss eviction
hits:1 misses:3 evictions:2 dirty_bytes_in_cache:4 dirty_bytes_evicted:0
`

func writeScript(dir, name, body string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755)).To(Succeed())
	return path
}

var _ = Describe("ParseOutput", func() {
	It("should map outcome lines in order and read the statistics", func() {
		report, err := reference.ParseOutput(strings.NewReader(sampleOutput), reference.SchemaV1)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Outcomes).To(Equal([]cache.Outcome{
			cache.Miss, cache.MissEviction, cache.Hit, cache.MissEviction,
		}))
		Expect(report.Stats).To(Equal(cache.Stats{
			Hits: 1, Misses: 3, Evictions: 2, DirtyBytesInCache: 4,
		}))
	})

	It("should accept CRLF line endings", func() {
		out := strings.ReplaceAll(sampleOutput, "\n", "\r\n")
		report, err := reference.ParseOutput(strings.NewReader(out), reference.SchemaV1)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Outcomes).To(HaveLen(4))
	})

	It("should fail without a statistics line", func() {
		_, err := reference.ParseOutput(strings.NewReader("L 10,1 miss\n"), reference.SchemaV1)
		Expect(err).To(MatchError(reference.ErrNoStats))
	})

	It("should fail on two statistics lines", func() {
		out := sampleOutput + "hits:0 misses:0 evictions:0 dirty_bytes_in_cache:0 dirty_bytes_evicted:0\n"
		_, err := reference.ParseOutput(strings.NewReader(out), reference.SchemaV1)
		Expect(err).To(MatchError(reference.ErrDuplicateStats))
	})

	It("should fail on a wrong integer count", func() {
		_, err := reference.ParseOutput(strings.NewReader("hits:1 misses:2\n"), reference.SchemaV1)
		Expect(err).To(MatchError(reference.ErrStatsFieldCount))
	})
})

var _ = Describe("Runner", func() {
	var (
		dir       string
		tracePath string
		g         geometry.Geometry
	)

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("shell scripts stand in for the reference binary")
		}

		dir = GinkgoT().TempDir()
		tracePath = filepath.Join(dir, "t.trace")
		Expect(os.WriteFile(tracePath, []byte("L 10,1\n"), 0644)).To(Succeed())
		g = geometry.Geometry{S: 2, E: 1, B: 3}
	})

	It("should run the binary in its own directory with the verbose flags", func() {
		binDir := filepath.Join(dir, "bin")
		Expect(os.Mkdir(binDir, 0755)).To(Succeed())
		bin := writeScript(binDir, "csim-ref",
			"pwd > cwd.txt\necho \"$@\" > args.txt\ncat <<'EOF'\n"+sampleOutput+"EOF\n")

		report, err := reference.NewRunner(bin, time.Second).Run(context.Background(), g, tracePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Outcomes).To(HaveLen(4))

		cwd, err := os.ReadFile(filepath.Join(binDir, "cwd.txt"))
		Expect(err).NotTo(HaveOccurred())
		want, err := filepath.EvalSymlinks(binDir)
		Expect(err).NotTo(HaveOccurred())
		got, err := filepath.EvalSymlinks(strings.TrimSpace(string(cwd)))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))

		args, err := os.ReadFile(filepath.Join(binDir, "args.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.TrimSpace(string(args))).To(Equal("-v -s 2 -E 1 -b 3 -t " + tracePath))
	})

	It("should fail on a missing binary", func() {
		_, err := reference.NewRunner(filepath.Join(dir, "nope"), time.Second).
			Run(context.Background(), g, tracePath)
		Expect(err).To(MatchError(reference.ErrMissingBinary))
	})

	It("should fail on a missing trace", func() {
		bin := writeScript(dir, "csim-ref", "exit 0\n")
		_, err := reference.NewRunner(bin, time.Second).
			Run(context.Background(), g, filepath.Join(dir, "missing.trace"))
		Expect(err).To(MatchError(reference.ErrMissingTrace))
	})

	It("should give up after the timeout", func() {
		bin := writeScript(dir, "slow", "exec sleep 10\n")
		start := time.Now()
		_, err := reference.NewRunner(bin, 100*time.Millisecond).
			Run(context.Background(), g, tracePath)
		Expect(err).To(MatchError(reference.ErrTimeout))
		Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
	})

	It("should report a failing binary with its stderr", func() {
		bin := writeScript(dir, "broken", "echo boom >&2\nexit 3\n")
		_, err := reference.NewRunner(bin, time.Second).Run(context.Background(), g, tracePath)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("boom"))
	})
})
