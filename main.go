package main

import (
	"log"

	"cash-kiosk/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
