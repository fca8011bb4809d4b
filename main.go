package main

import (
	"github.com/courtrush/courtrush/cmd"
)

func main() {
	cmd.Execute()
}
