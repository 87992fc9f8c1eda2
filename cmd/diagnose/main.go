package main

import "os"

func main() {
	os.Exit(handleCLIFlags(os.Args[1:], os.Stdout))
}
