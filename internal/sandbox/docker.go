package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
)

// Label marks every image and container created by the judge. Its value is
// the instance name, so leftovers can be swept after a crash without touching
// another instance sharing the daemon.
const Label = "io.pyjudge.sandbox"

type DockerSandbox struct {
	cli      *client.Client
	instance string
	logger   *zerolog.Logger
}

func NewDockerSandbox(instance string, logger *zerolog.Logger) (*DockerSandbox, error) {
	if instance == "" {
		return nil, errors.New("sandbox instance name is required")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &DockerSandbox{cli: cli, instance: instance, logger: logger}, nil
}

func (s *DockerSandbox) labels() map[string]string {
	return map[string]string{Label: s.instance}
}

func sweepFilter(instance string) filters.Args {
	return filters.NewArgs(filters.Arg("label", Label+"="+instance))
}

func (s *DockerSandbox) BuildImage(ctx context.Context, dir, tag string) error {
	buildCtx, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return &BuildError{Err: fmt.Errorf("failed to archive build context: %w", err)}
	}
	defer buildCtx.Close()

	resp, err := s.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{tag},
		Remove:      true,
		ForceRemove: true,
		Labels:      s.labels(),
	})
	if err != nil {
		return &BuildError{Err: err}
	}
	defer resp.Body.Close()

	// The daemon reports build failures inside the JSON stream, not as an
	// HTTP error.
	var log bytes.Buffer
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, &log, 0, false, nil); err != nil {
		return &BuildError{Log: log.String(), Err: err}
	}

	s.logger.Debug().Str("tag", tag).Msg("image built")
	return nil
}

func (s *DockerSandbox) RunContainer(ctx context.Context, tag string, spec RunSpec) (string, error) {
	pidsLimit := spec.PidsLimit

	resp, err := s.cli.ContainerCreate(ctx, &container.Config{
		Image:           tag,
		Cmd:             spec.Cmd,
		Env:             spec.Env,
		Tty:             false,
		NetworkDisabled: true,
		WorkingDir:      "/app",
		User:            "nobody",
		Labels:          s.labels(),
	}, &container.HostConfig{
		Resources: container.Resources{
			Memory:     spec.MemoryBytes,
			MemorySwap: spec.MemoryBytes, // No swap allowed
			NanoCPUs:   spec.NanoCPUs,
			PidsLimit:  &pidsLimit,
		},
		NetworkMode: "none",
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
	}, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := s.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return resp.ID, fmt.Errorf("failed to start container: %w", err)
	}

	s.logger.Debug().Str("container", resp.ID).Str("tag", tag).Msg("container started")
	return resp.ID, nil
}

func (s *DockerSandbox) Wait(ctx context.Context, id string) (ExitInfo, error) {
	statusCh, errCh := s.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)

	var status container.WaitResponse
	select {
	case err := <-errCh:
		return ExitInfo{}, fmt.Errorf("failed to wait for container: %w", err)
	case status = <-statusCh:
	case <-ctx.Done():
		return ExitInfo{}, ctx.Err()
	}
	if status.Error != nil {
		return ExitInfo{}, fmt.Errorf("container wait: %s", status.Error.Message)
	}

	info := ExitInfo{StatusCode: status.StatusCode}
	inspect, err := s.cli.ContainerInspect(ctx, id)
	if err != nil {
		return info, fmt.Errorf("failed to inspect container: %w", err)
	}
	if inspect.State != nil {
		info.OOMKilled = inspect.State.OOMKilled
	}
	return info, nil
}

func (s *DockerSandbox) Logs(ctx context.Context, id string) ([]byte, error) {
	rc, err := s.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch container logs: %w", err)
	}
	defer rc.Close()

	// Both streams share one buffer so their interleaving is preserved.
	var combined bytes.Buffer
	if _, err := stdcopy.StdCopy(&combined, &combined, rc); err != nil {
		return combined.Bytes(), fmt.Errorf("failed to demultiplex container logs: %w", err)
	}
	return combined.Bytes(), nil
}

func (s *DockerSandbox) RemoveContainer(ctx context.Context, id string) error {
	err := s.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", id, err)
	}
	return nil
}

func (s *DockerSandbox) RemoveImage(ctx context.Context, tag string) error {
	_, err := s.cli.ImageRemove(ctx, tag, image.RemoveOptions{Force: true, PruneChildren: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove image %s: %w", tag, err)
	}
	return nil
}

func (s *DockerSandbox) EnsureImage(ctx context.Context, img string) error {
	_, _, err := s.cli.ImageInspectWithRaw(ctx, img)
	if err == nil {
		return nil // Image already exists
	}

	s.logger.Info().Str("image", img).Msg("pulling docker image")
	reader, err := s.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", img, err)
	}
	defer reader.Close()

	// Important: must consume the reader to finish the pull
	_, _ = io.Copy(io.Discard, reader)

	s.logger.Info().Str("image", img).Msg("successfully pulled docker image")
	return nil
}

// Sweep removes containers and images of this instance left over by a
// previous process that died mid-evaluation.
func (s *DockerSandbox) Sweep(ctx context.Context) error {
	args := sweepFilter(s.instance)

	containers, err := s.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return fmt.Errorf("failed to list sandbox containers: %w", err)
	}
	for _, c := range containers {
		if err := s.RemoveContainer(ctx, c.ID); err != nil {
			return err
		}
	}

	images, err := s.cli.ImageList(ctx, image.ListOptions{Filters: args})
	if err != nil {
		return fmt.Errorf("failed to list sandbox images: %w", err)
	}
	for _, img := range images {
		if err := s.RemoveImage(ctx, img.ID); err != nil {
			return err
		}
	}

	s.logger.Info().Str("instance", s.instance).Int("containers", len(containers)).Int("images", len(images)).Msg("swept stale sandbox resources")
	return nil
}

func (s *DockerSandbox) Close() error {
	return s.cli.Close()
}
