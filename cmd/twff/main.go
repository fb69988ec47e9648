package main

import (
	"fmt"
	"os"
)

// version is stamped at release time via ldflags; default stays dev
// for local builds.
var version = "0.0.0-dev"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args))
}

func run(arguments []string) int {
	if len(arguments) < 2 {
		fmt.Println("twff", version)
		printUsage()
		return exitOK
	}
	switch arguments[1] {
	case "inspect":
		return runInspect(arguments[2:])
	case "verify":
		return runVerify(arguments[2:])
	case "project":
		return runProject(arguments[2:])
	case "demo":
		return runDemo(arguments[2:])
	case "version", "--version":
		fmt.Println("twff", version)
		return exitOK
	case "help", "--help", "-h":
		printUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", arguments[1])
		printUsage()
		return exitUsage
	}
}

func printUsage() {
	fmt.Print(`usage: twff <command> [flags]

commands:
  inspect <file.twff>                 summarize a container: session, events, members
  verify <file.twff>                  decode and verify the integrity digest
  project <file.twff> [flags]         render the annotated document as HTML
      --styles <registry.toml>        style registry (built-in default when omitted)
      -o <out.html>                   output path (stdout when omitted)
  demo [-o <out.twff>]                record a synthetic session and export it
  version                             print version
`)
}
