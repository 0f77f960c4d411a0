package main

import (
	"log"

	"github.com/iliyamo/session-booking/internal/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		log.Fatal(err)
	}
}
