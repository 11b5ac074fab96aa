package main

import (
	"github.com/robotalks/mojo.go/pkg/cli/sh"
	"github.com/robotalks/mojo.go/pkg/config"
)

func init() {
	config.SetupFlags()
}

func main() {
	sh.Main()
}
