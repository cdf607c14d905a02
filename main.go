package main

import "accidentlab/cmd"

func main() {
	cmd.Execute()
}
