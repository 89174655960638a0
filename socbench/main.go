// Command socbench runs the SoC testbench.
package main

import "github.com/sarchlab/socbench/socbench/cmd"

func main() {
	cmd.Execute()
}
