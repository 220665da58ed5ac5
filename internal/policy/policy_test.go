package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Valid(t *testing.T) {
	p, err := New([]string{"clang-cgc"}, []string{"svn/svn", "(tags/"})
	require.NoError(t, err)

	assert.Equal(t, []string{"clang-cgc"}, p.Required())
	assert.Equal(t, []string{"svn/svn", "(tags/"}, p.Forbidden())
}

func TestNew_CopiesInput(t *testing.T) {
	req := []string{"clang-cgc"}
	p, err := New(req, []string{"svn/svn"})
	require.NoError(t, err)

	req[0] = "mutated"
	assert.Equal(t, []string{"clang-cgc"}, p.Required())

	got := p.Forbidden()
	got[0] = "mutated"
	assert.Equal(t, []string{"svn/svn"}, p.Forbidden())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		required  []string
		forbidden []string
		field     string
		contains  string
	}{
		{"empty required", nil, []string{"svn/svn"}, "required", "pattern set is empty"},
		{"empty forbidden", []string{"clang-cgc"}, []string{}, "forbidden", "pattern set is empty"},
		{"blank pattern", []string{"clang-cgc", "  "}, []string{"svn/svn"}, "required[1]", "pattern is empty"},
		{"nul byte", []string{"clang-cgc"}, []string{"svn\x00svn"}, "forbidden[0]", "NUL byte"},
		{"invalid utf8", []string{"clang-\xff"}, []string{"svn/svn"}, "required[0]", "not valid UTF-8"},
		{"not nfc", []string{"clang-cgc"}, []string{"cafe\u0301"}, "forbidden[0]", "not NFC-normalized"},
		{"duplicate", []string{"clang-cgc"}, []string{"svn/svn", "(tags/", "svn/svn"}, "forbidden[2]", "first at index 0"},
		{"overlap", []string{"clang-cgc"}, []string{"clang-cgc"}, "forbidden[0]", "both required and forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.required, tt.forbidden)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Contains(t, cfgErr.Error(), tt.contains)
		})
	}
}

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, []string{"clang-cgc"}, p.Required())
	assert.Equal(t, []string{"svn/svn", "infrastructure", "(tags/"}, p.Forbidden())

	// Default must itself pass validation.
	_, err := New(p.Required(), p.Forbidden())
	require.NoError(t, err)
}

func TestSelect_CanonicalOrder(t *testing.T) {
	p := Default()

	got := p.Select(Forbidden, Required, Forbidden)
	require.Len(t, got, 4)
	assert.Equal(t, Pattern{Text: "clang-cgc", Class: Required}, got[0])
	assert.Equal(t, Pattern{Text: "svn/svn", Class: Forbidden}, got[1])
	assert.Equal(t, Pattern{Text: "(tags/", Class: Forbidden}, got[3])

	assert.Equal(t, p.Patterns(), got)
	assert.Len(t, p.Select(Required), 1)
	assert.Empty(t, p.Select())
}

func TestParseClass(t *testing.T) {
	c, err := ParseClass("forbidden")
	require.NoError(t, err)
	assert.Equal(t, Forbidden, c)
	assert.Equal(t, "required", Required.String())

	_, err = ParseClass("optional")
	assert.ErrorContains(t, err, "unknown pattern set")
}
