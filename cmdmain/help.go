package cmdmain

import (
	"flag"
	"fmt"
	"io"
	"os"
)

func init() {
	RegisterSubCmd("help", func() SubCmd { return &help{out: os.Stderr} })
}

type help struct {
	out io.Writer
}

// Exec implements SubCmd. Without arguments it prints the usage of the
// binary, otherwise the help of the named subcommands.
func (h *help) Exec(cmd string, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return nil
	}
	for _, name := range args {
		sc, ok := subCmds[name]
		if !ok {
			return fmt.Errorf("unknown subcommand: %q", name)
		}
		fmt.Fprintf(h.out, "%v: %v\nRun `%v %v -h` to show its flags\n", name, sc.Help(), cmd, name)
	}
	return nil
}

// Help implements SubCmd.
func (h *help) Help() string {
	return "Print help, optionally for the given commands"
}
