package main

import (
	"log"

	tool "github.com/reconhub/auth-service/internal/tools/obscheck"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
