package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "ingest-dir":
		return runIngestDir(args[1:])
	case "cluster":
		return runCluster(args[1:])
	case "stories":
		return runStories(args[1:])
	case "sweep":
		return runSweep(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "storyline CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  storyline <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health      Verify story store connectivity")
	fmt.Fprintln(os.Stderr, "  validate    Validate news item JSON files against the v1 schema")
	fmt.Fprintln(os.Stderr, "  ingest      Merge one news item into the story store")
	fmt.Fprintln(os.Stderr, "  ingest-dir  Merge every news item file under a directory")
	fmt.Fprintln(os.Stderr, "  cluster     Cluster news item files without touching the store")
	fmt.Fprintln(os.Stderr, "  stories     List active stories, optionally clustered")
	fmt.Fprintln(os.Stderr, "  sweep       Delete stories past the retention horizon")
	fmt.Fprintln(os.Stderr, "  serve       Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"storyline <command> -h\" for command-specific flags.")
}
