package docker

import (
	"time"

	"github.com/sakif/codeshare/internal/executor"
)

// Runtime is the container image and command line for one language.
type Runtime struct {
	Image string
	// Command builds the argv that runs code inside the container.
	Command func(code string) []string
}

// Config holds the sandbox limits shared by every runtime.
type Config struct {
	Runtimes map[executor.Language]Runtime
	// MemoryLimit is the container memory cap in bytes.
	MemoryLimit int64
	// CPULimit is the number of CPUs a container may use.
	CPULimit float64
	// Timeout bounds a single execution.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers kept per runtime.
	PoolSize int
	// MaxOutput caps captured stdout and stderr, each, in bytes.
	MaxOutput int
}

// DefaultConfig runs Python and Node on alpine images: 128 MB, half a CPU,
// no network, 5 seconds.
func DefaultConfig() Config {
	return Config{
		Runtimes: map[executor.Language]Runtime{
			executor.Python: {
				Image:   "python:3.12-alpine",
				Command: func(code string) []string { return []string{"python", "-c", code} },
			},
			executor.JavaScript: {
				Image:   "node:20-alpine",
				Command: func(code string) []string { return []string{"node", "-e", code} },
			},
		},
		MemoryLimit: 128 * 1024 * 1024,
		CPULimit:    0.5,
		Timeout:     5 * time.Second,
		PoolSize:    2,
		MaxOutput:   64 * 1024,
	}
}
