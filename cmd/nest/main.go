package main

import (
	"log"

	"nestfs/cmd/nest/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
