// Command spiral manipulates Danganronpa game archives and scripts.
package main

import "github.com/spiral-tools/spiral/cmd"

func main() {
	cmd.Execute()
}
