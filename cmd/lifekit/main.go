package main

import (
	"lifekit-core/internal/cli"
)

func main() {
	cli.Execute()
}
