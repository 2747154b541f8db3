package main

import "github.com/arium/arium/cmd"

func main() {
	cmd.Execute()
}
