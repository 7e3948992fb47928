package suite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	It("should default to the standard table", func() {
		c := DefaultConfig()

		Expect(c.Validate()).To(Succeed())
		Expect(c.Cases).To(HaveLen(10))
		Expect(c.Cases[7]).To(Equal(Case{S: 14, E: 1024, B: 3, Trace: "trans.trace"}))
		Expect(c.Candidate).To(Equal("native"))
		Expect(time.Duration(c.Timeout)).To(Equal(30 * time.Second))
	})

	It("should keep defaults for fields the file omits", func() {
		path := filepath.Join(GinkgoT().TempDir(), "suite.json")
		Expect(os.WriteFile(path, []byte(`{"candidate": "akita", "timeout": "5s"}`), 0644)).To(Succeed())

		c, err := LoadConfig(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Candidate).To(Equal("akita"))
		Expect(time.Duration(c.Timeout)).To(Equal(5 * time.Second))
		Expect(c.TraceDir).To(Equal("traces"))
		Expect(c.Cases).To(Equal(DefaultCases()))
	})

	It("should save and load the same configuration", func() {
		path := filepath.Join(GinkgoT().TempDir(), "suite.json")
		c := DefaultConfig()
		c.Candidate = ExecCandidate
		c.BuildCommand = []string{"go", "build", "-o", "{{.Output}}", "./cmd/csim"}
		c.Parallel = 4
		c.DB = "history.sqlite3"
		c.Cases = c.Cases[:2]

		Expect(c.SaveConfig(path)).To(Succeed())
		loaded, err := LoadConfig(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(c))
	})

	It("should report unreadable and malformed files", func() {
		dir := GinkgoT().TempDir()
		_, err := LoadConfig(filepath.Join(dir, "missing.json"))
		Expect(err).To(HaveOccurred())

		path := filepath.Join(dir, "bad.json")
		Expect(os.WriteFile(path, []byte(`{"timeout": "soon"}`), 0644)).To(Succeed())
		_, err = LoadConfig(path)
		Expect(err).To(MatchError(ContainSubstring("failed to parse suite config")))
	})

	It("should accept a timeout in nanoseconds", func() {
		var d Duration
		Expect(json.Unmarshal([]byte(`1000000`), &d)).To(Succeed())
		Expect(time.Duration(d)).To(Equal(time.Millisecond))

		data, err := json.Marshal(Duration(90 * time.Second))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`"1m30s"`))
	})

	DescribeTable("Validate",
		func(mutate func(c *Config), msg string) {
			c := DefaultConfig()
			mutate(c)
			Expect(c.Validate()).To(MatchError(ContainSubstring(msg)))
		},
		Entry("no reference", func(c *Config) { c.Reference = "" }, "reference"),
		Entry("no trace dir", func(c *Config) { c.TraceDir = "" }, "trace_dir"),
		Entry("no candidate", func(c *Config) { c.Candidate = "" }, "candidate"),
		Entry("exec without build command",
			func(c *Config) { c.Candidate = ExecCandidate }, "build_command"),
		Entry("zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"),
		Entry("zero parallelism", func(c *Config) { c.Parallel = 0 }, "parallel"),
		Entry("no cases", func(c *Config) { c.Cases = nil }, "cases"),
		Entry("case without trace",
			func(c *Config) { c.Cases[3].Trace = "" }, "case 3: trace"),
		Entry("case with no ways",
			func(c *Config) { c.Cases[1].E = 0 }, "case 1"),
	)

	Describe("ApplyEnv", func() {
		vars := []string{EnvReference, EnvTraceDir, EnvCandidate, EnvTimeout, EnvParallel, EnvDB}

		BeforeEach(func() {
			for _, v := range vars {
				GinkgoT().Setenv(v, "")
				Expect(os.Unsetenv(v)).To(Succeed())
			}
		})

		It("should leave the config alone without variables", func() {
			c := DefaultConfig()
			Expect(c.ApplyEnv()).To(Succeed())
			Expect(c).To(Equal(DefaultConfig()))
		})

		It("should override from the process environment", func() {
			GinkgoT().Setenv(EnvReference, "/opt/csim-ref")
			GinkgoT().Setenv(EnvTraceDir, "/data/traces")
			GinkgoT().Setenv(EnvCandidate, "akita")
			GinkgoT().Setenv(EnvTimeout, "2m")
			GinkgoT().Setenv(EnvParallel, "8")
			GinkgoT().Setenv(EnvDB, "runs.sqlite3")

			c := DefaultConfig()
			Expect(c.ApplyEnv()).To(Succeed())

			Expect(c.Reference).To(Equal("/opt/csim-ref"))
			Expect(c.TraceDir).To(Equal("/data/traces"))
			Expect(c.Candidate).To(Equal("akita"))
			Expect(time.Duration(c.Timeout)).To(Equal(2 * time.Minute))
			Expect(c.Parallel).To(Equal(8))
			Expect(c.DB).To(Equal("runs.sqlite3"))
		})

		It("should read env files, with the process taking precedence", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, ".env")
			Expect(os.WriteFile(path, []byte(
				"CACHECHECK_CANDIDATE=akita\nCACHECHECK_PARALLEL=3\n"), 0644)).To(Succeed())
			GinkgoT().Setenv(EnvParallel, "5")

			c := DefaultConfig()
			Expect(c.ApplyEnv(path, filepath.Join(dir, "missing.env"))).To(Succeed())

			Expect(c.Candidate).To(Equal("akita"))
			Expect(c.Parallel).To(Equal(5))
		})

		It("should reject malformed numbers", func() {
			GinkgoT().Setenv(EnvParallel, "many")
			Expect(DefaultConfig().ApplyEnv()).To(MatchError(ContainSubstring(EnvParallel)))
		})

		It("should reject malformed durations", func() {
			GinkgoT().Setenv(EnvTimeout, "later")
			Expect(DefaultConfig().ApplyEnv()).To(MatchError(ContainSubstring(EnvTimeout)))
		})
	})
})
