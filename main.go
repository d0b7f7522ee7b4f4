package main

import (
	"github.com/maxgio92/perfjit/pkg/cmd"
)

func main() {
	cmd.Execute()
}
