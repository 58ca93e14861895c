package timing

import (
	"fmt"
	"os"
	"strings"

	"code.cloudfoundry.org/clock"
	"github.com/google/pprof/profile"

	"github.com/perfgo/testbatch/model"
)

// Builder turns executed test results into a pprof profile of wall time.
// Identifiers are split into frames (module, class, test) so that the
// flame graph groups tests by suite.
type Builder struct {
	profile   *profile.Profile
	functions map[string]*profile.Function
	locations map[string]*profile.Location
}

// New creates an empty builder stamped with the clock's current time.
func New(clk clock.Clock) *Builder {
	return &Builder{
		profile: &profile.Profile{
			SampleType: []*profile.ValueType{
				{Type: "wall", Unit: "nanoseconds"},
				{Type: "tests", Unit: "count"},
			},
			PeriodType: &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
			Period:     1,
			TimeNanos:  clk.Now().UnixNano(),
		},
		functions: make(map[string]*profile.Function),
		locations: make(map[string]*profile.Location),
	}
}

// Add records one result as a sample labelled with its outcome.
func (b *Builder) Add(res model.RunResult) {
	frames := Frames(res.Identifier)

	// pprof stacks are leaf first
	stack := make([]*profile.Location, 0, len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		stack = append(stack, b.location(strings.Join(frames[:i+1], "/"), frames[i]))
	}

	b.profile.Sample = append(b.profile.Sample, &profile.Sample{
		Location: stack,
		Value:    []int64{res.Elapsed.Nanoseconds(), 1},
		Label:    map[string][]string{"outcome": {res.Outcome.String()}},
	})
	b.profile.DurationNanos += res.Elapsed.Nanoseconds()
}

// Observe is Add, for use as a batch observer.
func (b *Builder) Observe(res model.RunResult) {
	b.Add(res)
}

// Profile returns the profile built so far.
func (b *Builder) Profile() *profile.Profile {
	return b.profile
}

// WriteFile writes the gzipped profile to path.
func (b *Builder) WriteFile(path string) error {
	if err := b.profile.CheckValid(); err != nil {
		return fmt.Errorf("invalid duration profile: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create duration profile: %w", err)
	}
	if err := b.profile.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write duration profile: %w", err)
	}
	return f.Close()
}

func (b *Builder) location(key, name string) *profile.Location {
	if loc, exists := b.locations[key]; exists {
		return loc
	}

	loc := &profile.Location{
		ID:   uint64(len(b.profile.Location) + 1),
		Line: []profile.Line{{Function: b.function(key, name)}},
	}
	b.locations[key] = loc
	b.profile.Location = append(b.profile.Location, loc)
	return loc
}

func (b *Builder) function(key, name string) *profile.Function {
	if fn, exists := b.functions[key]; exists {
		return fn
	}

	fn := &profile.Function{
		ID:         uint64(len(b.profile.Function) + 1),
		Name:       name,
		SystemName: key,
	}
	b.functions[key] = fn
	b.profile.Function = append(b.profile.Function, fn)
	return fn
}

// Frames splits an identifier into its hierarchy, outermost first.
//
//	test/x.py::TestX::test_a       -> [test/x.py TestX test_a]
//	__main__.CudaReproTests.test_a -> [__main__ CudaReproTests test_a]
//	test_a                         -> [test_a]
func Frames(id string) []string {
	// Parameters may contain separators of their own.
	if i := strings.IndexByte(id, '['); i > 0 {
		head := Frames(id[:i])
		head[len(head)-1] += id[i:]
		return head
	}
	if strings.Contains(id, "::") {
		return strings.Split(id, "::")
	}
	return strings.Split(id, ".")
}
