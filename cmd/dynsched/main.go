package main

import (
	"fmt"
	"os"

	"dynsched/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "dynsched:", err)
		os.Exit(1)
	}
	if err := application.Run(); err != nil {
		os.Exit(1)
	}
}
