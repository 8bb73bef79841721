package main

import "github.com/ayusman/landmarker/internal/cli"

func main() {
	cli.Execute()
}
