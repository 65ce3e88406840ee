package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatch(t *testing.T) {
	script := `
# fill
push 1
push 2 true
push "-3" false   # quoted negative
pop
peek
`
	ops, err := parseBatch(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, ops, 5)

	assert.Equal(t, "push", ops[0].name)
	assert.Equal(t, int32(1), ops[0].value.Integer)
	assert.True(t, ops[1].value.Boolean)
	assert.Equal(t, int32(-3), ops[2].value.Integer)
	assert.False(t, ops[2].value.Boolean)
	assert.Equal(t, "pop", ops[3].name)
	assert.Equal(t, 6, ops[3].line)
	assert.Equal(t, "peek", ops[4].name)
}

func TestParseBatch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"unknown op", "drop 1", `line 1: unknown operation "drop"`},
		{"push without value", "push", "line 1: usage"},
		{"push too many args", "push 1 true extra", "line 1: usage"},
		{"bad integer", "\npush x", "line 2: invalid integer"},
		{"bad boolean", "push 1 maybe", `line 1: invalid boolean "maybe"`},
		{"pop with args", "pop 1", "line 1: pop takes no arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBatch(strings.NewReader(tt.script))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBatch_Stdin(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.runWithInput(t, "push 1\npush 2 true\npop\npeek\npop\npop\n", "batch")
	require.NoError(t, err)
	assert.Equal(t, "1 false\n2 true\n2 true\n(empty)\ndefault (2,2)\n", out)
}

func TestBatch_File(t *testing.T) {
	env := newTestEnv(t)

	script := filepath.Join(t.TempDir(), "ops.txt")
	require.NoError(t, os.WriteFile(script, []byte("push 7\npush 8\n"), 0644))

	out := env.mustRun(t, "batch", script)
	assert.Equal(t, "default (0,2)\n", out)
	assert.Equal(t, "7 false\n", env.mustRun(t, "pop"))
}

func TestBatch_SyntaxErrorLeavesQueueUntouched(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.runWithInput(t, "push 1\nbogus\n", "batch")
	require.Error(t, err)

	assert.Equal(t, "(empty)\n", env.mustRun(t, "pop"))
}
