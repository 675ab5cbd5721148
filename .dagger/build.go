package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/ragrelay/internal/dagger"
)

// Build and return directory of go binaries
func (r *RagRelay) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// go-sqlite3 needs cgo, so each architecture builds in a container of
	// that platform instead of cross compiling.
	goarches := []string{"amd64", "arm64"}

	outputs := dag.Directory()

	for _, goarch := range goarches {
		path := fmt.Sprintf("linux/%s/", goarch)

		build := r.goContainerFor(dagger.Platform("linux/" + goarch)).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/ragrelay"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (r *RagRelay) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/l-messias/ragrelay/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/l-messias/ragrelay/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/l-messias/ragrelay/pkg/utils.Buildtime=%s'", buildtime),
	}

	return r.Build(ctx, strings.Join(ldflags, " "))
}
