package main

import "github.com/andresmejia3/faceindex/cmd"

func main() {
	cmd.Execute()
}
