// Command ces-gate runs the constitutional enforcement pipeline.
package main

import "github.com/odisys/ces-gate/cmd/ces-gate/cmd"

func main() {
	cmd.Execute()
}
