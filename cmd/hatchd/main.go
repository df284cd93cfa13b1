package main

import (
	"github.com/mlegge/hatchd/internal/cli"
	"github.com/mlegge/hatchd/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
