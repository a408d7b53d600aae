package main

import (
	"StemDeck/cmd"
)

func main() {
	cmd.Execute()
}
