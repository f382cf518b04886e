// Command river runs the jira-river coordinator and its operator CLI.
package main

import "github.com/riverdex/jira-river/internal/cli"

func main() {
	cli.Execute()
}
