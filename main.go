package main

import "github.com/RenerPires/cfp-energy-technical-test-backend/cmd"

func main() {
	cmd.Execute()
}
