package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCheckSuccess(t *testing.T) {
	c := Checker{Dir: t.TempDir()}
	res := c.RunCheck(context.Background(), "echo hello world")

	assert.True(t, res.Ok)
	assert.Equal(t, "hello world", res.Output)
}

func TestRunCheckFailure(t *testing.T) {
	c := Checker{Dir: t.TempDir()}
	res := c.RunCheck(context.Background(), "false")

	assert.False(t, res.Ok)
	assert.NotEmpty(t, res.Output)
}

func TestRunCheckMissingBinary(t *testing.T) {
	c := Checker{Dir: t.TempDir()}
	res := c.RunCheck(context.Background(), "definitely-not-a-real-binary-xyz")

	assert.False(t, res.Ok)
	assert.NotEmpty(t, res.Output)
}

func TestRunCheckEmptyCommand(t *testing.T) {
	c := Checker{Dir: t.TempDir()}
	res := c.RunCheck(context.Background(), "   ")

	assert.False(t, res.Ok)
	assert.Equal(t, "empty command", res.Output)
}

func TestRunCheckTimeout(t *testing.T) {
	c := Checker{Dir: t.TempDir(), Timeout: 200 * time.Millisecond}

	start := time.Now()
	res := c.RunCheck(context.Background(), "sleep 10")
	elapsed := time.Since(start)

	assert.False(t, res.Ok)
	assert.Contains(t, res.Output, "timed out")
	assert.Less(t, elapsed, 5*time.Second, "timeout should not wait for the full sleep")
}

func TestRunCheckNoShellInterpretation(t *testing.T) {
	c := Checker{Dir: t.TempDir()}

	// The metacharacters reach echo as plain arguments.
	res := c.RunCheck(context.Background(), "echo a && rm -rf /tmp/nope")
	require.True(t, res.Ok)
	assert.Equal(t, "a && rm -rf /tmp/nope", res.Output)
}

func TestRunChecksConcurrent(t *testing.T) {
	c := Checker{Dir: t.TempDir()}

	results := c.RunChecks(context.Background(), map[string]string{
		"build":  "echo built",
		"test":   "false",
		"deploy": "",
	})

	require.Len(t, results, 2, "empty commands are skipped")
	assert.True(t, results["build"].Ok)
	assert.Equal(t, "built", results["build"].Output)
	assert.False(t, results["test"].Ok)
}
