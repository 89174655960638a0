// Package web holds the page of the monitoring server.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
)

// AssetsEnv names a directory to serve the page from instead of the copy
// built into the binary.
const AssetsEnv = "SOCBENCH_MONITOR_ASSETS"

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the files of the monitoring page.
func GetAssets() http.FileSystem {
	if dir := os.Getenv(AssetsEnv); dir != "" {
		fmt.Fprintf(os.Stderr, "Serving monitor assets from %s\n", dir)
		return http.Dir(dir)
	}

	dist, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(dist)
}
