package reference

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/sarchlab/cachecheck/cache"
)

// Errors raised while reading a statistics line.
var (
	ErrNoStats         = errors.New("reference output has no statistics line")
	ErrStatsFieldCount = errors.New("statistics line must hold exactly five integers")
	ErrStatsFieldName  = errors.New("statistics field out of schema order")
)

// StatsSchema describes the layout of the statistics line.
type StatsSchema struct {
	Version int
	// Prefix starts the statistics line.
	Prefix string
	// Fields name the counters, in cache.Stats.Values order.
	Fields [cache.NumStats]string
}

// SchemaV1 is the line printed by the golden reference:
//
//	hits:4 misses:3 evictions:1 dirty_bytes_in_cache:8 dirty_bytes_evicted:0
var SchemaV1 = StatsSchema{
	Version: 1,
	Prefix:  "hits:",
	Fields: [cache.NumStats]string{
		"hits",
		"misses",
		"evictions",
		"dirty_bytes_in_cache",
		"dirty_bytes_evicted",
	},
}

var decimal = regexp.MustCompile(`[0-9]+`)

// IsStatsLine tells whether line carries the statistics.
func (s StatsSchema) IsStatsLine(line string) bool {
	return strings.HasPrefix(line, s.Prefix)
}

// Parse reads the five counters from line. The line must contain exactly
// five decimal integers. Tokens written as name:value must follow the
// schema's field names in order.
func (s StatsSchema) Parse(line string) (cache.Stats, error) {
	numbers := decimal.FindAllString(line, -1)
	if len(numbers) != cache.NumStats {
		return cache.Stats{}, fmt.Errorf("%w: found %d in %q",
			ErrStatsFieldCount, len(numbers), line)
	}

	if err := s.checkNames(line); err != nil {
		return cache.Stats{}, err
	}

	var values [cache.NumStats]uint64
	for i, n := range numbers {
		v, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return cache.Stats{}, fmt.Errorf("statistic %s: %w", s.Fields[i], err)
		}
		values[i] = v
	}

	return cache.StatsFromValues(values), nil
}

func (s StatsSchema) checkNames(line string) error {
	i := 0
	for _, token := range strings.Fields(line) {
		name, _, named := strings.Cut(token, ":")
		if !named {
			continue
		}

		if i >= cache.NumStats || name != s.Fields[i] {
			return fmt.Errorf("%w: %q at position %d", ErrStatsFieldName, name, i)
		}
		i++
	}
	return nil
}

// Format writes stats as a statistics line.
func (s StatsSchema) Format(w io.Writer, stats cache.Stats) error {
	values := stats.Values()
	parts := make([]string, cache.NumStats)
	for i, name := range s.Fields {
		parts[i] = fmt.Sprintf("%s:%d", name, values[i])
	}

	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}
