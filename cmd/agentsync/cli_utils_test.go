package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("json", false, "")
	fs.Bool("q", false, "")
	fs.String("agent", "", "")
	fs.String("status", "", "")
	return fs
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "flags after positional move forward",
			args: []string{"HO-20250301-001", "--status", "done", "--json"},
			want: []string{"--status", "done", "--json", "HO-20250301-001"},
		},
		{
			name: "bool flag takes no value",
			args: []string{"--json", "HO-20250301-001"},
			want: []string{"--json", "HO-20250301-001"},
		},
		{
			name: "equals form stays intact",
			args: []string{"id", "--agent=Claude"},
			want: []string{"--agent=Claude", "id"},
		},
		{
			name: "double dash stops flag parsing",
			args: []string{"--json", "--", "--status", "literal"},
			want: []string{"--json", "--status", "literal"},
		},
		{
			name: "no args",
			args: nil,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeArgs(newTestFlagSet(), tt.args)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
	assert.Equal(t, []string{"solo"}, splitList("solo"))
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , ,"))
}
