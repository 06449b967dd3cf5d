// Command vsmectl inspects, edits, saves and exports VSME report sections
// against the configured storage backend.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(context.Background())
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "vsmectl: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}
	return 0
}
