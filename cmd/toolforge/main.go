// Command toolforge brings the external tools a host needs from
// not-installed to installed-and-verified, driven by a declarative
// catalog.
package main

import "toolforge/internal/cli"

func main() {
	cli.Execute()
}
