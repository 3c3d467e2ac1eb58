package main

import "github.com/abate-Agegnehu/musiccollectionbackend/cmd"

func main() {
	cmd.Execute()
}
