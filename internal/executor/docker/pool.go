package docker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/executor"
)

// sandboxLabel marks every container the server starts. The value is the
// runtime language, so leftovers from a crashed process can be found and
// removed on the next start.
const sandboxLabel = "codeshare.sandbox"

// pidsLimit stops fork bombs inside a sandbox.
const pidsLimit = 64

// Pool keeps up to Config.PoolSize idle containers of one runtime ready.
// A container is handed out once by Acquire and never returned.
type Pool struct {
	cli    *client.Client
	lang   executor.Language
	image  string
	config Config
	log    zerolog.Logger

	idle chan string
	done chan struct{}
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewPool(cli *client.Client, lang executor.Language, rt Runtime, cfg Config, log zerolog.Logger) *Pool {
	return &Pool{
		cli:    cli,
		lang:   lang,
		image:  rt.Image,
		config: cfg,
		log:    log,
		idle:   make(chan string, cfg.PoolSize),
		done:   make(chan struct{}),
	}
}

// Start removes stale sandboxes of this runtime, then fills the pool in the
// background.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		if n := p.reap(ctx); n > 0 {
			p.log.Info().Int("removed", n).Msg("removed stale sandbox containers")
		}
		p.log.Info().Int("poolSize", p.config.PoolSize).Str("image", p.image).Msg("starting sandbox pool")
		p.wg.Add(1)
		go p.refill()
	})
}

// Stop ends the refill loop and removes every idle container.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		for {
			select {
			case id := <-p.idle:
				p.remove(id)
			default:
				p.log.Info().Msg("sandbox pool stopped")
				return
			}
		}
	})
}

// Acquire blocks until a container is ready or ctx is done. The caller owns
// the container and must remove it.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.idle:
		return id, nil
	case <-p.done:
		return "", fmt.Errorf("executor: %s pool is stopped", p.lang)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Idle is the number of containers waiting to be used.
func (p *Pool) Idle() int {
	return len(p.idle)
}

func (p *Pool) refill() {
	defer p.wg.Done()

	for {
		if len(p.idle) >= cap(p.idle) {
			if !p.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		id, err := p.create()
		if err != nil {
			p.log.Error().Err(err).Msg("failed to create sandbox container")
			if !p.sleep(time.Second) {
				return
			}
			continue
		}

		select {
		case p.idle <- id:
		case <-p.done:
			p.remove(id)
			return
		}
	}
}

// sleep waits for d and reports false if the pool was stopped meanwhile.
func (p *Pool) sleep(d time.Duration) bool {
	select {
	case <-p.done:
		return false
	case <-time.After(d):
		return true
	}
}

// create starts an idle container that Execute will exec into.
func (p *Pool) create() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pids := int64(pidsLimit)
	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    p.config.MemoryLimit,
			NanoCPUs:  int64(p.config.CPULimit * 1e9),
			PidsLimit: &pids,
		},
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,noexec,nosuid,size=16m"},
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:  p.image,
		Cmd:    []string{"sleep", "infinity"},
		User:   "nobody",
		Env:    []string{"HOME=/tmp"},
		Labels: map[string]string{sandboxLabel: string(p.lang)},
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("executor: creating %s container: %w", p.lang, err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.remove(resp.ID)
		return "", fmt.Errorf("executor: starting %s container: %w", p.lang, err)
	}
	return resp.ID, nil
}

// reap force-removes labelled containers of this runtime and returns how
// many it removed.
func (p *Pool) reap(ctx context.Context) int {
	list, err := p.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", sandboxLabel+"="+string(p.lang))),
	})
	if err != nil {
		p.log.Warn().Err(err).Msg("listing stale sandbox containers")
		return 0
	}
	for _, c := range list {
		p.remove(c.ID)
	}
	return len(list)
}

func (p *Pool) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.log.Debug().Err(err).Str("container", id).Msg("removing sandbox container")
	}
}
