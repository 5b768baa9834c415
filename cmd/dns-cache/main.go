package main

import cmd "github.com/rohmanhakim/dns-cache/internal/cli"

func main() {
	cmd.Execute()
}
