package names

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomSuffix(t *testing.T) {
	re := regexp.MustCompile(`^[a-z]+$`)
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		s := RandomSuffix(20)
		assert.Len(t, s, 20)
		assert.Regexp(t, re, s)
		seen[s] = struct{}{}
	}
	assert.Len(t, seen, 50, "suffixes should not repeat")
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres", "postgres"},
		{"library/postgres", "library_postgres"},
		{`corp\internal`, "corp_internal"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestContainer(t *testing.T) {
	assert.Equal(t, "gantry-library_postgres-abc", Container("gantry", "library/postgres", "abc"))
}

func TestStaticContainer(t *testing.T) {
	assert.Equal(t, "gantry-postgres", StaticContainer("gantry", "postgres"))
}

func TestVolume(t *testing.T) {
	assert.Equal(t, "pgdata-run1", Volume("pgdata", "run1"))
}
