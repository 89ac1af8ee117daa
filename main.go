// Huematch as a command line tool (CLI) is documented in the project's README:
// https://github.com/BitPonyLLC/huematch#readme
package main

import (
	"os"

	"github.com/BitPonyLLC/huematch/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
