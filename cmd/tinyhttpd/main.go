package main

import "github.com/niels/tinyhttpd/internal/cmd"

func main() {
	cmd.Execute()
}
