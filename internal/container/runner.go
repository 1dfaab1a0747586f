// Package container runs an OpenFOAM solver script inside a Docker
// container: one container per run, the case directory bind-mounted in,
// argv-composed commands (never shell strings), and guaranteed teardown
// (stop + remove) on every exit path.
package container

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logging"
)

const logTag = "container"
const stopTimeoutSeconds = 5

// NewClient builds a Docker API client from the ambient environment
// (DOCKER_HOST and friends), negotiating the API version with the daemon.
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, apperrors.RuntimeUnavailable(err)
	}
	return cli, nil
}

// Runner launches solver runs against a single configured image.
type Runner struct {
	cli   *client.Client
	image string
}

// NewRunner builds a Runner bound to the given Docker client and image tag.
func NewRunner(cli *client.Client, image string) *Runner {
	return &Runner{cli: cli, image: image}
}

// RunOptions describes one containerized solver invocation.
type RunOptions struct {
	CaseDir string   // host directory bind-mounted read-write at /case
	Script  string   // validated script filename, run as ./<Script> inside /case
	Args    []string // extra argv appended after the script, never shell-interpolated
	User    string   // "<uid>:<gid>" to run as; empty keeps the image default
}

func (r *Runner) validate(opts RunOptions) error {
	if err := ValidateScriptName(opts.Script); err != nil {
		return err
	}
	for _, a := range opts.Args {
		if err := ValidateCommand(a); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) create(ctx context.Context, opts RunOptions) (string, error) {
	if err := r.validate(opts); err != nil {
		return "", err
	}

	cfg := &container.Config{
		Image:      r.image,
		Cmd:        BuildArgv(opts.Script, opts.Args),
		WorkingDir: "/case",
	}
	if opts.User != "" {
		cfg.User = opts.User
	}
	hostCfg := &container.HostConfig{
		Binds: []string{opts.CaseDir + ":/case"},
	}

	resp, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", apperrors.Docker(SanitizeDockerError(err), err)
	}
	return resp.ID, nil
}

// RunBlocking runs opts to completion and returns the combined
// stdout/stderr and exit code. The container is always stopped and
// removed before returning.
func (r *Runner) RunBlocking(ctx context.Context, opts RunOptions) (exitCode int, output string, err error) {
	id, err := r.create(ctx, opts)
	if err != nil {
		return 0, "", err
	}
	defer r.Stop(context.Background(), id)

	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return 0, "", apperrors.Docker(SanitizeDockerError(err), err)
	}

	status, err := r.waitResult(ctx, id)
	if err != nil {
		return 0, "", err
	}

	logs, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return status, "", apperrors.Docker(SanitizeDockerError(err), err)
	}
	defer logs.Close()

	data, err := io.ReadAll(logs)
	if err != nil {
		return status, "", apperrors.IOFailure(err)
	}
	return status, string(data), nil
}

// RunStreaming runs opts and streams output lines as they are produced.
// The error channel carries exactly one value when the run finishes: nil
// on success, non-nil for a nonzero exit status or a runtime error.
// Teardown (stop + remove) then runs before both channels are closed, on
// every exit path including context cancellation.
func (r *Runner) RunStreaming(ctx context.Context, opts RunOptions) (<-chan string, <-chan error) {
	lines := make(chan string)
	done := make(chan error, 1)

	go func() {
		defer close(lines)
		defer close(done)

		id, err := r.create(ctx, opts)
		if err != nil {
			done <- err
			return
		}
		defer r.Stop(context.Background(), id)

		if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
			done <- apperrors.Docker(SanitizeDockerError(err), err)
			return
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return r.pumpLogs(gctx, id, lines) })
		var exitCode int
		g.Go(func() error { code, err := r.waitResult(gctx, id); exitCode = code; return err })
		err = g.Wait()
		if err == nil && exitCode != 0 {
			err = errors.Errorf("container exited with status %d", exitCode)
		}
		done <- err
	}()

	return lines, done
}

func (r *Runner) pumpLogs(ctx context.Context, id string, lines chan<- string) error {
	logs, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: true})
	if err != nil {
		return apperrors.Docker(SanitizeDockerError(err), err)
	}
	defer logs.Close()

	sc := bufio.NewScanner(logs)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		select {
		case lines <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return apperrors.IOFailure(err)
	}
	return nil
}

func (r *Runner) waitResult(ctx context.Context, id string) (int, error) {
	statusCh, errCh := r.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return 0, apperrors.Docker(SanitizeDockerError(err), err)
		}
		return 0, nil
	case res := <-statusCh:
		if res.Error != nil {
			return int(res.StatusCode), errors.New(res.Error.Message)
		}
		return int(res.StatusCode), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Stop idempotently kills and removes a container. A not-found error from
// either call is swallowed since the desired end state — no container —
// is already achieved.
func (r *Runner) Stop(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	timeout := stopTimeoutSeconds
	if err := r.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil && !client.IsErrNotFound(err) {
		logging.Errorf(logTag, "stopping container %s: %v", id, err)
	}
	if err := r.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		logging.Errorf(logTag, "removing container %s: %v", id, err)
		return apperrors.Docker(SanitizeDockerError(err), err)
	}
	return nil
}
