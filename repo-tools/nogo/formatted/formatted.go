// Package formatted is an analyzer that reports Go source files that gofmt
// would change.
package formatted

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"os"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "formatted",
	Doc:  "reports files that are not gofmt-formatted",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		if ast.IsGenerated(file) {
			continue
		}

		tf := pass.Fset.File(file.Pos())
		in, err := os.ReadFile(tf.Name())
		if err != nil {
			return nil, fmt.Errorf("while reading %s: %w", tf.Name(), err)
		}

		out, err := format.Source(in)
		if err != nil {
			return nil, fmt.Errorf("while formatting %s: %w", tf.Name(), err)
		}

		if bytes.Equal(in, out) {
			continue
		}

		line := firstDifferingLine(in, out)
		if line > tf.LineCount() {
			line = tf.LineCount()
		}
		pass.Reportf(tf.LineStart(line), "file is not gofmt-formatted from line %d; please run `gofmt -w`", line)
	}
	return nil, nil
}

// firstDifferingLine returns the 1-based number of the first line where a and
// b differ.
func firstDifferingLine(a, b []byte) int {
	aLines := strings.Split(string(a), "\n")
	bLines := strings.Split(string(b), "\n")
	for i := 0; i < len(aLines) && i < len(bLines); i++ {
		if aLines[i] != bLines[i] {
			return i + 1
		}
	}
	if len(aLines) < len(bLines) {
		return len(aLines)
	}
	return len(bLines)
}
