package main

import (
	"github.com/mengelbart/netemu/cmdmain"
	_ "github.com/mengelbart/netemu/subcmd"
)

func main() {
	cmdmain.Main()
}
