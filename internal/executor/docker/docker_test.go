package docker

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codeshare/internal/executor"
)

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{max: 5}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n, "writers must see the full length to keep copying")

	b.Write([]byte("more"))
	assert.Equal(t, "abcde\n[output truncated]\n", b.String())

	small := &cappedBuffer{max: 10}
	small.Write([]byte("hi"))
	assert.Equal(t, "hi", small.String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Contains(t, cfg.Runtimes, executor.Python)
	require.Contains(t, cfg.Runtimes, executor.JavaScript)
	assert.Equal(t, []string{"python", "-c", "print(1)"}, cfg.Runtimes[executor.Python].Command("print(1)"))
	assert.Equal(t, []string{"node", "-e", "1"}, cfg.Runtimes[executor.JavaScript].Command("1"))
}

// Needs a local Docker daemon. Skipped in CI.
func TestDockerExecutor(t *testing.T) {
	if os.Getenv("CI") != "" || os.Getenv("DOCKER_TESTS") == "" {
		t.Skip("set DOCKER_TESTS=1 (outside CI) to run sandbox tests")
	}

	cfg := DefaultConfig()
	cfg.PoolSize = 1
	cfg.Timeout = 3 * time.Second

	exec, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer exec.Close()

	t.Run("python", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
			Language: executor.Python,
			Code: strings.Join([]string{
				"def fib(n):",
				"    return n if n <= 1 else fib(n-1) + fib(n-2)",
				"print(fib(10))",
			}, "\n"),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Stdout, "55")
	})

	t.Run("javascript", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
			Language: executor.JavaScript,
			Code:     `console.log([1,2,3].map(x => x * 2).join(","))`,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Stdout, "2,4,6")
	})

	t.Run("syntax error", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
			Language: executor.Python,
			Code:     `print("unclosed"`,
		})
		require.NoError(t, err)
		assert.NotEqual(t, 0, res.ExitCode)
		assert.Contains(t, res.Stderr, "SyntaxError")
	})

	t.Run("infinite loop", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
			Language: executor.Python,
			Code:     `while True: pass`,
		})
		require.NoError(t, err)
		assert.True(t, res.TimedOut)
		assert.Equal(t, timeoutExitCode, res.ExitCode)
		assert.Contains(t, res.Stderr, "timed out")
	})

	t.Run("pool refills after use", func(t *testing.T) {
		pool := exec.pools[executor.Python]
		assert.Eventually(t, func() bool { return pool.Idle() == cfg.PoolSize }, 30*time.Second, 100*time.Millisecond)
	})

	t.Run("unsupported language", func(t *testing.T) {
		_, err := exec.Execute(context.Background(), executor.ExecutionRequest{Language: "ruby", Code: "puts 1"})
		assert.Error(t, err)
	})
}
