package main

import "github.com/packagewjx/anomalydetector/cmd"

func main() {
	cmd.Execute()
}
