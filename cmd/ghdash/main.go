// Command ghdash is the terminal client of the GitHub dashboard.
package main

import "github.com/sakif/ghdash/internal/cmd"

func main() {
	cmd.Execute()
}
