package subcmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/julienschmidt/httprouter"
	"github.com/mengelbart/netemu/cmdmain"
	"github.com/mengelbart/netemu/flags"
	"github.com/mengelbart/netemu/internal/http"
	"github.com/mengelbart/netemu/internal/model"
)

func init() {
	cmdmain.RegisterSubCmd("serve", func() cmdmain.SubCmd { return new(Serve) })
}

type Serve struct{}

// Help implements cmdmain.SubCmd.
func (s *Serve) Help() string {
	return "Run an HTTP API to run and query simulations"
}

// Exec implements cmdmain.SubCmd.
func (s *Serve) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	flags.RegisterInto(fs,
		flags.HTTPAddrFlag,
		flags.CertFlag,
		flags.KeyFlag,
	)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Run an HTTP API to run and query simulations

Usage:
	%s serve [flags]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	if len(fs.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "error: unknown extra arguments: %v\n", fs.Args())
		fs.Usage()
		os.Exit(1)
	}

	mux := httprouter.New()
	api := http.NewApi(model.NewStore())
	api.RegisterRoutes(mux)

	server, err := http.NewServer(
		http.Address(flags.HTTPAddr),
		http.Handle(mux),
		http.CertificateFile(flags.Cert),
		http.CertificateKeyFile(flags.Key),
		http.RequestLogger(slog.Default()),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return server.ListenAndServe(ctx)
}
