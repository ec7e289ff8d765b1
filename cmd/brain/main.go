package main

import "github.com/vboughner/brain-lambda/cmd/brain/cli"

func main() {
	cli.Execute()
}
