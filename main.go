package main

import "github.com/liftedinit/powledger/cmd/powledger"

func main() {
	powledger.Execute()
}
