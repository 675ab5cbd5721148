package main

import (
	"os"

	ragrelaycmder "github.com/l-messias/ragrelay/cmd/ragrelay"
)

func main() {
	cmd := ragrelaycmder.NewRagRelayCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
