package main

import (
	"os"

	"github.com/alemendo/intent-cli/internal/app"
)

func main() {
	os.Exit(app.NewRunner().Run(os.Args[1:]))
}
