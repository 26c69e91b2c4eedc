// checkinctl is the desk-side companion to checkin-service: it verifies a
// pass from a string, an image or a directory of camera frames against a
// lookup backend, re-prints passes, and hashes terminal keys for the
// terminal registry.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
)

var errUsage = errors.New("usage")

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errUsage
	}
	switch args[0] {
	case "verify":
		return runVerify(args[1:], stdout, stderr)
	case "pass":
		return runPass(args[1:], stdout, stderr)
	case "hash-key":
		return runHashKey(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: checkinctl <command> [flags]

Commands:
  verify    check a pass against the appointment lookup
  pass      render a pass as PNG and/or PDF
  hash-key  print the bcrypt hash of a terminal key for terminals.yaml

Run "checkinctl <command> --help" for command flags.
`)
}
