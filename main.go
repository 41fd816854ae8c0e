// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/contentpipe/cmd/contentpipe"

func main() {
	cmd.Execute()
}
