package main

import "dabeat/cmd"

func main() {
	cmd.Execute()
}
