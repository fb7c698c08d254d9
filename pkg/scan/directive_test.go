package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		line string
		kind string
		args []Arg
	}{
		{"//telepath:home", KindHome, nil},
		{"//telepath:route /api", KindRoute, []Arg{{Value: "/api"}}},
		{
			`//telepath:route /api prefix description="API landing"`,
			KindRoute,
			[]Arg{{Value: "/api"}, {Value: "prefix"}, {Key: "description", Value: "API landing", Quoted: true}},
		},
		{
			"//telepath:role   c=controller\tp=pathData",
			KindRole,
			[]Arg{{Key: "c", Value: "controller"}, {Key: "p", Value: "pathData"}},
		},
		{
			`//telepath:route /q description="say \"hi\""`,
			KindRoute,
			[]Arg{{Value: "/q"}, {Key: "description", Value: `say "hi"`, Quoted: true}},
		},
		{`//telepath:route "/quoted"`, KindRoute, []Arg{{Value: "/quoted", Quoted: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			d, ok, err := ParseDirective(tt.line)
			require.True(t, ok)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.args, d.Args)
		})
	}
}

func TestParseDirectiveIgnoresOtherComments(t *testing.T) {
	for _, line := range []string{"// telepath:route /a", "//go:generate telepath gen", "// plain"} {
		_, ok, err := ParseDirective(line)
		assert.False(t, ok, line)
		assert.NoError(t, err)
	}
}

func TestParseDirectiveErrors(t *testing.T) {
	for _, line := range []string{
		"//telepath:",
		`//telepath:route /a description=`,
		`//telepath:route /a ="x"`,
		`//telepath:route /a description="open`,
	} {
		_, ok, err := ParseDirective(line)
		assert.True(t, ok, line)
		assert.Error(t, err, line)
	}
}

func TestDirectiveLookup(t *testing.T) {
	d, _, err := ParseDirective(`//telepath:route /a desc=one desc="two"`)
	require.NoError(t, err)

	v, ok := d.Lookup("desc")
	assert.True(t, ok)
	assert.Equal(t, "two", v)
	assert.Equal(t, []string{"/a"}, d.Positional())
}
