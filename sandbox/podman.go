package sandbox

import (
	"go.uber.org/zap"
)

// NewPodmanExecutor creates a ContainerExecutor using the podman CLI.
// Podman accepts the same run flags as docker and also reports runtime failures as 125.
func NewPodmanExecutor(logger *zap.Logger, config *Config, opts ...Option) *ContainerExecutor {
	return NewContainerExecutor("podman", logger, config, opts...)
}
