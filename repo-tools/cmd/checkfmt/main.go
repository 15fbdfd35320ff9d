// Command checkfmt runs the formatted analyzer over packages:
//
//	go run ./repo-tools/cmd/checkfmt ./...
package main

import (
	"glint/repo-tools/nogo/formatted"

	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(formatted.Analyzer)
}
