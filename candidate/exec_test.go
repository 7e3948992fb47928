package candidate_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachecheck/candidate"
	"github.com/sarchlab/cachecheck/geometry"
	"github.com/sarchlab/cachecheck/trace"
)

// fakeCompiler writes an executable that reports the geometry it was built
// for as its statistics, and logs every build.
const fakeCompiler = `echo built >> builds.log
cat > {{.Output}} <<'END'
#!/bin/sh
echo "L 0,1 miss"
echo "hits:{{.S}} misses:{{.E}} evictions:{{.B}} dirty_bytes_in_cache:{{.TagBits}} dirty_bytes_evicted:0"
END
`

var _ = Describe("Builder", func() {
	var (
		dir string
		g   geometry.Geometry
	)

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("build commands use sh")
		}
		dir = GinkgoT().TempDir()
		g = geometry.Geometry{S: 2, E: 1, B: 3}
	})

	builds := func() int {
		data, err := os.ReadFile(filepath.Join(dir, "builds.log"))
		if os.IsNotExist(err) {
			return 0
		}
		Expect(err).NotTo(HaveOccurred())
		return strings.Count(string(data), "built")
	}

	It("should build one artifact per geometry", func() {
		b := candidate.NewBuilder([]string{"sh", "-c", fakeCompiler}, dir, filepath.Join(dir, "bin"))

		path, err := b.Build(context.Background(), g)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(dir, "bin", "candidate-s2-E1-b3")))
		Expect(path).To(BeARegularFile())

		again, err := b.Build(context.Background(), g)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(path))
		Expect(builds()).To(Equal(1))

		_, err = b.Build(context.Background(), geometry.Geometry{S: 1, E: 1, B: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(builds()).To(Equal(2))
	})

	It("should leave nothing behind when the build fails", func() {
		outDir := filepath.Join(dir, "bin")
		b := candidate.NewBuilder([]string{"sh", "-c", "echo half > {{.Output}}; exit 1"}, dir, outDir)

		_, err := b.Build(context.Background(), g)
		Expect(err).To(MatchError(candidate.ErrBuild))

		entries, err := os.ReadDir(outDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("should reject a bad template", func() {
		b := candidate.NewBuilder([]string{"sh", "-c", "{{.Nope}}"}, dir, dir)
		_, err := b.Build(context.Background(), g)
		Expect(err).To(MatchError(candidate.ErrBuild))
	})

	It("should run the built executable through the reference CLI", func() {
		tracePath := filepath.Join(dir, "t.trace")
		Expect(os.WriteFile(tracePath, []byte("L 0,1\n"), 0644)).To(Succeed())
		f, err := trace.Open(tracePath)
		Expect(err).NotTo(HaveOccurred())

		r := &candidate.ExecRunner{
			Builder: candidate.NewBuilder([]string{"sh", "-c", fakeCompiler}, dir, filepath.Join(dir, "bin")),
			Timeout: 5 * time.Second,
		}

		report, err := r.Run(context.Background(), g, f)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Outcomes).To(HaveLen(1))
		Expect(report.Stats.Values()).To(Equal([5]uint64{2, 1, 3, 59, 0}))
	})
})
