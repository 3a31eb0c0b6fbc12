// mapbuilder serves parcel lookups and buildable-area estimates to the map
// client, and runs the same estimates from the command line.
package main

import (
	"os"

	"github.com/corey/mapbuilder/cmd/mapbuilder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
