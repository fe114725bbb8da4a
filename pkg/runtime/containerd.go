package runtime

import (
	"context"
	"fmt"
	"strconv"
	"syscall"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/google/uuid"
)

const (
	// DefaultNamespace is the containerd namespace the Overlord uses.
	DefaultNamespace = "overlord"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// ContainerdRuntime implements Runtime by spawning one container per
// dispatched minion via containerd.
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
	image     string
}

// NewContainerdRuntime connects to containerd at socketPath and configures
// spawned containers to use image.
func NewContainerdRuntime(socketPath, image string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("runtime: connecting to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:    client,
		namespace: DefaultNamespace,
		image:     image,
	}, nil
}

func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Available implements Runtime.
func (r *ContainerdRuntime) Available(ctx context.Context) bool {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	_, err := r.client.Version(ctx)
	return err == nil
}

// EnsureNetwork implements Runtime. The Overlord relies on containerd's
// default CNI network plugin to provide spawned minions a route back to the
// Reporter Endpoint; there is nothing further to provision here beyond
// confirming the daemon is reachable.
func (r *ContainerdRuntime) EnsureNetwork(ctx context.Context) error {
	if !r.Available(ctx) {
		return fmt.Errorf("runtime: containerd unavailable")
	}
	return nil
}

// Spawn implements Runtime.
func (r *ContainerdRuntime) Spawn(ctx context.Context, req SpawnRequest) (string, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	image, err := r.client.GetImage(ctx, r.image)
	if err != nil {
		image, err = r.client.Pull(ctx, r.image, containerd.WithPullUnpack)
		if err != nil {
			return "", fmt.Errorf("runtime: pulling image %s: %w", r.image, err)
		}
	}

	id := "minion-" + uuid.NewString()
	env := []string{
		"REPO=" + req.Repo,
		"ISSUE_NUMBER=" + strconv.Itoa(req.IssueNumber),
		"CALLBACK_URL=" + req.CallbackURL,
		"MINION_ID=" + id,
		"CORRELATION_ID=" + req.CorrelationID,
	}
	if req.LLMBaseURL != "" {
		env = append(env, "LLM_BASE_URL="+req.LLMBaseURL)
	}
	if req.LLMModel != "" {
		env = append(env, "LLM_MODEL="+req.LLMModel)
	}
	if req.LLMAPIKey != "" {
		env = append(env, "LLM_API_KEY="+req.LLMAPIKey)
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(env),
	}

	container, err := r.client.NewContainer(
		ctx,
		id,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(id+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return "", fmt.Errorf("runtime: creating container: %w", err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return "", fmt.Errorf("runtime: creating task: %w", err)
	}
	if err := task.Start(ctx); err != nil {
		return "", fmt.Errorf("runtime: starting task: %w", err)
	}

	return id, nil
}

// Status implements Runtime.
func (r *ContainerdRuntime) Status(ctx context.Context, id string) (Status, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return StatusNone, nil
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return StatusNone, nil
	}

	taskStatus, err := task.Status(ctx)
	if err != nil {
		return StatusNone, fmt.Errorf("runtime: task status: %w", err)
	}

	switch taskStatus.Status {
	case containerd.Running, containerd.Paused:
		return StatusRunning, nil
	case containerd.Stopped:
		return StatusExited, nil
	default:
		return StatusNone, nil
	}
}

// Logs implements Runtime. Log streaming requires a cio.LogFile attached at
// task-creation time, which minion containers don't currently wire up;
// until they do this is best-effort empty output rather than an error, so the
// Watchdog's log capture for exited containers degrades gracefully.
func (r *ContainerdRuntime) Logs(ctx context.Context, id string, tail int) (string, error) {
	return "", nil
}

// Kill implements Runtime: SIGTERM, wait up to DefaultKillGrace, then
// SIGKILL, then delete the container and its snapshot.
func (r *ContainerdRuntime) Kill(ctx context.Context, id string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return nil
	}

	task, err := container.Task(ctx, nil)
	if err == nil {
		stopCtx, cancel := context.WithTimeout(ctx, DefaultKillGrace)
		if killErr := task.Kill(stopCtx, syscall.SIGTERM); killErr == nil {
			statusC, waitErr := task.Wait(stopCtx)
			if waitErr == nil {
				select {
				case <-statusC:
				case <-stopCtx.Done():
					_ = task.Kill(ctx, syscall.SIGKILL)
				}
			}
		}
		cancel()
		_, _ = task.Delete(ctx)
	}

	return container.Delete(ctx, containerd.WithSnapshotCleanup)
}

// List implements Runtime.
func (r *ContainerdRuntime) List(ctx context.Context) ([]string, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	containers, err := r.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("runtime: listing containers: %w", err)
	}

	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID())
	}
	return ids, nil
}

// CleanupDead implements Runtime.
func (r *ContainerdRuntime) CleanupDead(ctx context.Context) (int, error) {
	ids, err := r.List(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		status, err := r.Status(ctx, id)
		if err != nil {
			continue
		}
		if status == StatusExited {
			if err := r.Kill(ctx, id); err == nil {
				count++
			}
		}
	}
	return count, nil
}

// SyncActive implements Runtime.
func (r *ContainerdRuntime) SyncActive(ctx context.Context, activeIDs []string) ([]string, error) {
	var stale []string
	for _, id := range activeIDs {
		status, err := r.Status(ctx, id)
		if err != nil || status != StatusRunning {
			stale = append(stale, id)
		}
	}
	return stale, nil
}
