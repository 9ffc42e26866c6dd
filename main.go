package main

import "github.com/kozaktomas/visagevault/cmd"

func main() {
	cmd.Execute()
}
