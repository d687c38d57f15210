package header

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_BucketAlwaysInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("djb2 bucket index stays within the table", prop.ForAll(
		func(key string) bool {
			i := bucket(key)
			return i >= 0 && i < TableSize
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestProperty_LookupIgnoresCase(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("upper and lower case lookups return the same value", prop.ForAll(
		func(name, value string) bool {
			s := New()
			s.Insert(strings.ToLower(name), value)
			a, okA := s.Lookup(strings.ToUpper(name))
			b, okB := s.Lookup(strings.ToLower(name))
			return okA && okB && a == value && b == value
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.Property("most recent insert wins", prop.ForAll(
		func(name string, values []string) bool {
			if len(values) == 0 {
				return true
			}
			s := New()
			for _, v := range values {
				s.Insert(name, v)
			}
			return s.Get(name) == values[len(values)-1] && s.Len() == len(values)
		},
		gen.Identifier(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
