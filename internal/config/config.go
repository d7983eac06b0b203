// Package config reads gantry's run configuration from the environment.
//
// Everything here is consumed exactly once, when a run starts. Tests select
// behavior through GANTRY_* variables rather than a config file because runs
// execute inside arbitrary `go test` processes.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment keys, without the GANTRY_ prefix applied by viper.
const (
	// KeyPrune selects the teardown strategy:
	// always | never | running_on_failure | stop_on_failure.
	KeyPrune = "prune"

	// KeyContainerID carries the id of the container gantry itself runs in.
	// When set, that container is attached to each run's network so the test
	// body can reach the containers it starts.
	KeyContainerID = "container_id_inject_to_network"

	// KeyReadyTimeout bounds readiness waiting, in seconds.
	KeyReadyTimeout = "ready_timeout"
)

// DefaultReadyTimeout bounds a wait strategy when the environment does not
// override it.
const DefaultReadyTimeout = 60 * time.Second

// Env holds the environment-sourced run configuration.
type Env struct {
	// Prune is the raw prune-strategy selector. Empty when unset.
	Prune string

	// ContainerID is non-empty when gantry runs inside a container that must
	// be joined to the run network.
	ContainerID string

	// ReadyTimeout bounds each readiness strategy invocation.
	ReadyTimeout time.Duration
}

// FromEnv reads the run configuration from the environment.
func FromEnv() Env {
	v := viper.New()
	v.SetEnvPrefix("GANTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault(KeyReadyTimeout, int(DefaultReadyTimeout/time.Second))

	return Env{
		Prune:        v.GetString(KeyPrune),
		ContainerID:  v.GetString(KeyContainerID),
		ReadyTimeout: time.Duration(v.GetInt(KeyReadyTimeout)) * time.Second,
	}
}
