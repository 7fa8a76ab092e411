package main

import (
	"github.com/robotalks/cfboot/pkg/cli/sh"
	"github.com/robotalks/cfboot/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
