// ragrelay CI
//
// Package main provides reproducible builds and tests locally and in CI.
package main

import (
	"context"

	"dagger/ragrelay/internal/dagger"
)

// RagRelay is the main module for the ragrelay CI pipeline
type RagRelay struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new ragrelay CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *RagRelay {
	return &RagRelay{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, CGO enabled for go-sqlite3, and the project source mounted.
func (r *RagRelay) goContainer() *dagger.Container {
	return r.goContainerFor("")
}

// goContainerFor is goContainer on the given platform. An empty platform is
// the engine's own.
func (r *RagRelay) goContainerFor(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", r.Source)
}

// Test runs the unit tests via "go test"
func (r *RagRelay) Test(ctx context.Context) (string, error) {
	return r.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}

// Relay runs the relay server as a service against the given RAG endpoint,
// for trying the chat CLI or a browser client locally.
func (r *RagRelay) Relay(
	// RAG function endpoint
	upstream string,

	// RAG function key
	// +optional
	functionsKey *dagger.Secret,
) *dagger.Service {
	ctr := r.goContainer().
		WithExec([]string{"go", "build", "-o", "/usr/local/bin/ragrelay", "./cli/ragrelay"}).
		WithEnvVariable("LINK_API_RAG", upstream).
		WithExposedPort(3000)

	if functionsKey != nil {
		ctr = ctr.WithSecretVariable("X_FUNCTIONS_KEY_RAG", functionsKey)
	}

	return ctr.AsService(dagger.ContainerAsServiceOpts{
		Args: []string{"ragrelay", "serve", "--listen", ":3000"},
	})
}
