// Command unpyc decompiles a .pyc module into readable Python source.
//
// Without any flags it decompiles a file and prints the reconstructed
// source to stdout. The explore subcommand launches an interactive
// terminal browser over the module's code objects, their control-flow
// graphs, and the statements the decompiler reconstructed from them.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dr8co/unpyc/internal/decompile"
	"github.com/dr8co/unpyc/internal/pyversion"
	"github.com/dr8co/unpyc/pyc"
	"github.com/dr8co/unpyc/pyc/unparse"
)

const version = "0.1.0"

func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `unpyc %s - decompile Python bytecode to source

USAGE:
    %s [OPTIONS] <file.pyc>
    %s explore <file.pyc>

DESCRIPTION:
    Decompiles a .pyc module back into readable Python source. Without a
    subcommand, prints the reconstructed source for every code object in
    the module. "explore" opens an interactive browser over the module's
    functions, their control-flow graphs, and the reconstructed source.

OPTIONS:
    -o, --out <path>     Write decompiled source to a file instead of stdout
    -pyver <major.minor> Override the Python version instead of trusting
                         the .pyc magic number (e.g. -pyver 3.11)
    -d, --debug          Print the code object name and Python version
                         being decompiled to stderr
    -v, --version        Show version information
    -h, --help           Show this help message

EXAMPLES:
    %s script.pyc
    %s -o script.py script.pyc
    %s -pyver 3.11 script.pyc
    %s explore script.pyc

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	flag.Usage = printUsage

	outFlag := flag.String("out", "", "Write decompiled source to a file instead of stdout")
	flag.StringVar(outFlag, "o", "", "Write decompiled source to a file instead of stdout")
	pyverFlag := flag.String("pyver", "", "Override the Python version (major.minor) instead of trusting the .pyc magic number")
	debugFlag := flag.Bool("debug", false, "Print the code object name and Python version being decompiled to stderr")
	flag.BoolVar(debugFlag, "d", false, "Print the code object name and Python version being decompiled to stderr")
	versionFlag := flag.Bool("version", false, "Show version information")
	flag.BoolVar(versionFlag, "v", false, "Show version information")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("unpyc v%s\n", version)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "explore" {
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "explore requires a .pyc path")
			os.Exit(1)
		}
		runExplore(args[1])
		return
	}

	runDecompile(args[0], *outFlag, *pyverFlag, *debugFlag)
}

func runDecompile(path, out, pyver string, debug bool) {
	co, err := loadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "unpyc:", err)
		os.Exit(1)
	}

	if pyver != "" {
		v, err := parsePyver(pyver)
		if err != nil {
			fmt.Fprintln(os.Stderr, "unpyc: -pyver:", err)
			os.Exit(1)
		}
		co.Version = v
	}

	if debug {
		fmt.Fprintf(os.Stderr, "unpyc: decompiling %s as code object %q (python %s)\n",
			filepath.Base(path), co.Name, co.Version)
	}

	mod, err := decompile.Decompile(co)
	if err != nil {
		fmt.Fprintln(os.Stderr, "unpyc: decompiling", filepath.Base(path)+":", err)
		os.Exit(1)
	}

	src := unparse.Module(mod)

	if out == "" {
		fmt.Print(src)
		return
	}
	if err := os.WriteFile(out, []byte(src), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "unpyc: writing", out+":", err)
		os.Exit(1)
	}
}

// parsePyver parses a "major.minor" string into a pyversion.Version.
func parsePyver(s string) (pyversion.Version, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return pyversion.Version{}, fmt.Errorf("expected major.minor, got %q", s)
	}
	maj, err := strconv.Atoi(major)
	if err != nil {
		return pyversion.Version{}, fmt.Errorf("invalid major version %q", major)
	}
	min, err := strconv.Atoi(minor)
	if err != nil {
		return pyversion.Version{}, fmt.Errorf("invalid minor version %q", minor)
	}
	return pyversion.New(maj, min), nil
}

// loadFile reads and parses a .pyc module from disk.
func loadFile(path string) (*pyc.CodeObject, error) {
	//nolint:gosec // path is an explicit CLI argument, not untrusted input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return pyc.Load(data)
}
