// Command larder manages the reference catalog of a small inventory system.
package main

import "github.com/mesh-intelligence/larder/internal/cli"

func main() {
	cli.Execute()
}
