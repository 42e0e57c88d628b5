// Command voxadmin is the admin side of Vox: sign in with the recordings
// password, list and download recordings, manage roles.
package main

import (
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
