// Package docker implements executor.Executor with throwaway Docker
// containers: no network, a read-only root filesystem, capped memory and CPU,
// running as nobody. Each runtime keeps a small pool of pre-started
// containers so a run only pays for `docker exec`, and every container is
// destroyed after one use.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/executor"
)

// timeoutExitCode mirrors the exit status of coreutils `timeout`.
const timeoutExitCode = 124

var _ executor.Executor = (*Executor)(nil)

// Executor runs code in pooled containers.
type Executor struct {
	cli    *client.Client
	config Config
	log    zerolog.Logger
	pools  map[executor.Language]*Pool
}

// New connects to the Docker daemon from the environment (DOCKER_HOST etc.),
// pulls every runtime image and starts the pools.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("executor: creating docker client: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	for lang, rt := range cfg.Runtimes {
		log.Info().Str("language", string(lang)).Str("image", rt.Image).Msg("ensuring sandbox image is available")
		reader, err := cli.ImagePull(pullCtx, rt.Image, image.PullOptions{})
		if err != nil {
			cli.Close()
			return nil, fmt.Errorf("executor: pulling %s: %w", rt.Image, err)
		}
		// The pull finishes only once the progress stream is drained.
		io.Copy(io.Discard, reader)
		reader.Close()
	}

	e := &Executor{
		cli:    cli,
		config: cfg,
		log:    log,
		pools:  make(map[executor.Language]*Pool, len(cfg.Runtimes)),
	}
	for lang, rt := range cfg.Runtimes {
		pool := NewPool(cli, lang, rt, cfg, log.With().Str("language", string(lang)).Logger())
		pool.Start(ctx)
		e.pools[lang] = pool
	}
	return e, nil
}

// Close stops the pools, removing their idle containers, and the client.
func (e *Executor) Close() error {
	for _, p := range e.pools {
		p.Stop()
	}
	return e.cli.Close()
}

func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	pool, ok := e.pools[req.Language]
	if !ok {
		return nil, apperror.ValidationFailed("programmingLanguage", fmt.Sprintf("Running %s code is not supported", req.Language))
	}
	rt := e.config.Runtimes[req.Language]

	start := time.Now()

	containerID, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: acquiring container: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.log.Error().Err(err).Str("container", containerID).Msg("failed to remove container")
		}
	}()

	execCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	execResp, err := e.cli.ContainerExecCreate(execCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          rt.Command(req.Code),
	})
	if err != nil {
		return nil, fmt.Errorf("executor: creating exec: %w", err)
	}

	attach, err := e.cli.ContainerExecAttach(execCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("executor: attaching to exec: %w", err)
	}
	defer attach.Close()

	stdout := &cappedBuffer{max: e.config.MaxOutput}
	stderr := &cappedBuffer{max: e.config.MaxOutput}

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes Docker's combined stream.
		_, _ = stdcopy.StdCopy(stdout, stderr, attach.Reader)
		close(done)
	}()

	result := &executor.ExecutionResult{}
	select {
	case <-done:
		inspect, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err == nil {
			result.ExitCode = inspect.ExitCode
		}
	case <-execCtx.Done():
		// Unblock the copier and wait for it before touching the buffers.
		attach.Close()
		<-done
		result.ExitCode = timeoutExitCode
		result.TimedOut = true
		stderr.WriteString("\nExecution timed out.\n")
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.Duration = time.Since(start)
	return result, nil
}

// cappedBuffer keeps the first max bytes and silently drops the rest, so a
// runaway print loop cannot exhaust server memory.
type cappedBuffer struct {
	bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.Buffer.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.Buffer.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.Buffer.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.Buffer.String() + "\n[output truncated]\n"
	}
	return b.Buffer.String()
}
