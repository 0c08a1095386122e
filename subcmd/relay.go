package subcmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"

	"github.com/mengelbart/netemu/cmdmain"
	"github.com/mengelbart/netemu/emulator"
	"github.com/mengelbart/netemu/flags"
	"github.com/mengelbart/netemu/internal/logging"
	"github.com/mengelbart/netemu/udp"
	"github.com/pion/interceptor"
)

func init() {
	cmdmain.RegisterSubCmd("relay", func() cmdmain.SubCmd { return new(Relay) })
}

type Relay struct{}

// Help implements cmdmain.SubCmd.
func (r *Relay) Help() string {
	return "Forward RTP over UDP through an emulated link in real time"
}

// Exec implements cmdmain.SubCmd.
func (r *Relay) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("relay", flag.ExitOnError)
	flags.RegisterInto(fs,
		flags.LocalAddrFlag,
		flags.RemoteAddrFlag,
		flags.SeedFlag,
		flags.QueuePolicyFlag,
		flags.QueuePolicyDelayFlag,
		flags.QueueLengthFlag,
		flags.QueueDelayFlag,
		flags.DelayStdDevFlag,
		flags.LinkCapacityFlag,
		flags.LossPercentFlag,
		flags.BurstLengthFlag,
		flags.AllowReorderingFlag,
		flags.PacketOverheadFlag,
		flags.DropOldestFlag,
	)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Forward RTP over UDP through an emulated link in real time

Usage:
	%s relay [flags]

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

	link := flags.Scenario().Link
	qf, err := link.QueueFactory()
	if err != nil {
		return err
	}
	factory, err := emulator.NewInterceptorFactory(
		emulator.Config(link.NetworkConfig()),
		emulator.QueueFactory(qf),
		emulator.Seed(flags.Seed),
		emulator.LoggerFactory(logging.NewLoggerFactory(slog.Default())),
		emulator.PacketLogger(logging.NewPacketLogger("relay", slog.Default())),
	)
	if err != nil {
		return err
	}
	registry := &interceptor.Registry{}
	registry.Add(factory)
	chain, err := registry.Build("")
	if err != nil {
		return err
	}

	remote, err := net.ResolveUDPAddr("udp", flags.RemoteAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenPacket("udp", flags.LocalAddr)
	if err != nil {
		return err
	}
	slog.Info("relaying RTP", "local", conn.LocalAddr(), "remote", remote)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return udp.NewRelay(conn, remote, chain).Run(ctx)
}
