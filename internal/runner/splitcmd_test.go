package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    []string
	}{
		{"simple", "npm test", []string{"npm", "test"}},
		{"extra whitespace", "  go   build \t ./...  ", []string{"go", "build", "./..."}},
		{"double quotes", `node "my script.js" --flag`, []string{"node", "my script.js", "--flag"}},
		{"single quotes", `sh 'a b' c`, []string{"sh", "a b", "c"}},
		{"backslash in single quotes", `grep 'a\nb'`, []string{"grep", `a\nb`}},
		{"escape in double quotes", `echo "say \"hi\""`, []string{"echo", `say "hi"`}},
		{"escape outside quotes", `echo a\ b`, []string{"echo", "a b"}},
		{"pipe is literal", "echo a | grep a", []string{"echo", "a", "|", "grep", "a"}},
		{"and is literal", "make build && make test", []string{"make", "build", "&&", "make", "test"}},
		{"empty quotes keep a token", `run "" done`, []string{"run", "", "done"}},
		{"trailing backslash literal", `echo a\`, []string{"echo", `a\`}},
		{"adjacent quoted parts", `echo a"b c"d`, []string{"echo", "ab cd"}},
		{"empty", "", nil},
		{"only spaces", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCommand(tt.command))
		})
	}
}
