package main

import (
	"os"

	"horse.fit/safeagree/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
