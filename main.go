package main

import (
	"fmt"
	"os"

	"github.com/oseayemenre/novelnest/cmd"
)

//go:generate swag init -g main.go -o docs

// @title			NovelNest
// @version		1.0
// @description	Novel catalog, reader sessions and memberships
// @host			localhost:8080
// @BasePath		/api/v1
func main() {
	if err := cmd.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
