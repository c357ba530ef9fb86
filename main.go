package main

import "memory-map-backend/cmd"

func main() {
	cmd.Execute()
}
