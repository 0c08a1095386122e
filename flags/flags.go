// Package flags implements command-line flags for netemu.
//
// The design idea is taken from [upspin.io/flags], but most of the code is
// modified. This package uses a slightly modified version of [RegisterInto] and
// the internal [flags]-map. See [Upspin LICENSE] for upspins copyright and
// license information.
//
// [upspin.io/flags]: https://github.com/upspin/upspin/tree/334f107fe3d98225d7adfbb35b74e066fbca9875/flags
// [Upspin LICENSE]: https://github.com/upspin/upspin/blob/334f107fe3d98225d7adfbb35b74e066fbca9875/LICENSE
package flags

import (
	"flag"
	"fmt"
	"time"

	"github.com/mengelbart/netemu/simulation"
)

type FlagName string

// flag keys
const (
	LocalAddrFlag  FlagName = "local"
	RemoteAddrFlag FlagName = "remote"

	HTTPAddrFlag FlagName = "http-address"
	CertFlag     FlagName = "cert"
	KeyFlag      FlagName = "key"

	ScenarioFileFlag FlagName = "scenarios"
	NameFlag         FlagName = "name"
	DurationFlag     FlagName = "duration"
	TickFlag         FlagName = "tick"
	BitrateFlag      FlagName = "bitrate"
	PayloadSizeFlag  FlagName = "payload-size"
	SeedFlag         FlagName = "seed"

	QueuePolicyFlag      FlagName = "queue-policy"
	QueuePolicyDelayFlag FlagName = "queue-policy-delay"
	QueueLengthFlag      FlagName = "queue-length"
	QueueDelayFlag       FlagName = "queue-delay"
	DelayStdDevFlag      FlagName = "delay-std-dev"
	LinkCapacityFlag     FlagName = "link-capacity"
	LossPercentFlag      FlagName = "loss"
	BurstLengthFlag      FlagName = "avg-burst-loss-length"
	AllowReorderingFlag  FlagName = "allow-reordering"
	PacketOverheadFlag   FlagName = "packet-overhead"
	DropOldestFlag       FlagName = "drop-oldest"

	PlotFlag   FlagName = "plot"
	OutputFlag FlagName = "output"
)

// Flag vars
var (
	// LocalAddr is the UDP address the relay receives RTP on
	LocalAddr = "127.0.0.1:5000"

	// RemoteAddr is the UDP address the relay forwards RTP to
	RemoteAddr = "127.0.0.1:5002"

	// HTTP Server
	HTTPAddr = "127.0.0.1:8080"

	// TLS is used if both are set
	Cert = ""
	Key  = ""

	// ScenarioFile is a JSON file of scenarios. If set, the scenario flags
	// below are ignored.
	ScenarioFile = ""

	Name        = "cli"
	Duration    = 10 * time.Second
	Tick        = time.Millisecond
	Bitrate     = uint(1_000_000)
	PayloadSize = uint(1200)
	Seed        = uint64(1)

	// Link
	QueuePolicy      = "leaky-bucket"
	QueuePolicyDelay = time.Duration(0)
	QueueLength      = uint(0)
	QueueDelay       = time.Duration(0)
	DelayStdDev      = time.Duration(0)
	LinkCapacity     = uint(0)
	LossPercent      = float64(0)
	BurstLength      = -1
	AllowReordering  = false
	PacketOverhead   = uint(0)
	DropOldest       = false

	// Plot is a file prefix for delay plots, empty disables plotting.
	Plot   = ""
	Output = ""
)

type flagVar func(*flag.FlagSet)

func stringVar(p *string, name FlagName, defaultValue *string, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.StringVar(p, string(name), *defaultValue, usage)
	}
}

func uintVar(p *uint, name FlagName, defaultValue *uint, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.UintVar(p, string(name), *defaultValue, usage)
	}
}

func uint64Var(p *uint64, name FlagName, defaultValue *uint64, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.Uint64Var(p, string(name), *defaultValue, usage)
	}
}

func intVar(p *int, name FlagName, defaultValue *int, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.IntVar(p, string(name), *defaultValue, usage)
	}
}

func float64Var(p *float64, name FlagName, defaultValue *float64, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.Float64Var(p, string(name), *defaultValue, usage)
	}
}

func durationVar(p *time.Duration, name FlagName, defaultValue *time.Duration, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.DurationVar(p, string(name), *defaultValue, usage)
	}
}

func boolVar(p *bool, name FlagName, defaultValue *bool, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.BoolVar(p, string(name), *defaultValue, usage)
	}
}

var flags = map[FlagName]flagVar{
	// Address related flags
	LocalAddrFlag:  stringVar(&LocalAddr, LocalAddrFlag, &LocalAddr, "UDP address to receive RTP packets on"),
	RemoteAddrFlag: stringVar(&RemoteAddr, RemoteAddrFlag, &RemoteAddr, "UDP address to forward RTP packets to"),

	// Server flags
	HTTPAddrFlag: stringVar(&HTTPAddr, HTTPAddrFlag, &HTTPAddr, "HTTP Server address"),
	CertFlag:     stringVar(&Cert, CertFlag, &Cert, "TLS Certificate, enables TLS together with -key"),
	KeyFlag:      stringVar(&Key, KeyFlag, &Key, "TLS Certificate key"),

	// Scenario flags
	ScenarioFileFlag: stringVar(&ScenarioFile, ScenarioFileFlag, &ScenarioFile, "JSON file with one scenario or a list of scenarios, overrides the scenario and link flags"),
	NameFlag:         stringVar(&Name, NameFlag, &Name, "Name of the scenario"),
	DurationFlag:     durationVar(&Duration, DurationFlag, &Duration, "Simulated duration"),
	TickFlag:         durationVar(&Tick, TickFlag, &Tick, "Step of the simulated clock"),
	BitrateFlag:      uintVar(&Bitrate, BitrateFlag, &Bitrate, "Sending rate of the RTP source in bits per second"),
	PayloadSizeFlag:  uintVar(&PayloadSize, PayloadSizeFlag, &PayloadSize, "RTP payload size in bytes"),
	SeedFlag:         uint64Var(&Seed, SeedFlag, &Seed, "Seed of the loss and jitter models"),

	// Link flags
	QueuePolicyFlag:      stringVar(&QueuePolicy, QueuePolicyFlag, &QueuePolicy, "Queue policy (leaky-bucket, head-drop, delay)"),
	QueuePolicyDelayFlag: durationVar(&QueuePolicyDelay, QueuePolicyDelayFlag, &QueuePolicyDelay, "Sojourn time of queued packets with the delay policy"),
	QueueLengthFlag:      uintVar(&QueueLength, QueueLengthFlag, &QueueLength, "Queue length in packets including the packet in transmission, 0 for unbounded"),
	QueueDelayFlag:       durationVar(&QueueDelay, QueueDelayFlag, &QueueDelay, "Mean propagation delay"),
	DelayStdDevFlag:      durationVar(&DelayStdDev, DelayStdDevFlag, &DelayStdDev, "Standard deviation of the propagation delay"),
	LinkCapacityFlag:     uintVar(&LinkCapacity, LinkCapacityFlag, &LinkCapacity, "Link capacity in bits per second, 0 for unlimited"),
	LossPercentFlag:      float64Var(&LossPercent, LossPercentFlag, &LossPercent, "Packet loss in percent"),
	BurstLengthFlag:      intVar(&BurstLength, BurstLengthFlag, &BurstLength, "Average loss burst length, -1 for uniform loss"),
	AllowReorderingFlag:  boolVar(&AllowReordering, AllowReorderingFlag, &AllowReordering, "Allow jitter to reorder packets"),
	PacketOverheadFlag:   uintVar(&PacketOverhead, PacketOverheadFlag, &PacketOverhead, "Bytes added to every packet"),
	DropOldestFlag:       boolVar(&DropOldest, DropOldestFlag, &DropOldest, "Evict the oldest queued packet when the queue is full"),

	// Output flags
	PlotFlag:   stringVar(&Plot, PlotFlag, &Plot, "Write delay and queue length plots per scenario to <plot><scenario>.png and <plot><scenario>-queue.png"),
	OutputFlag: stringVar(&Output, OutputFlag, &Output, "Write the JSON report to this file instead of stdout"),
}

func RegisterInto(fs *flag.FlagSet, names ...FlagName) {
	if len(names) == 0 {
		for _, f := range flags {
			f(fs)
		}
	} else {
		for _, n := range names {
			f, ok := flags[n]
			if !ok {
				panic(fmt.Sprintf("unknown flag: %q", n))
			}
			f(fs)
		}
	}
}

// Scenario returns the scenario described by the scenario and link flags.
func Scenario() simulation.Scenario {
	return simulation.Scenario{
		Name:        Name,
		Duration:    simulation.Duration(Duration),
		Tick:        simulation.Duration(Tick),
		Bitrate:     int(Bitrate),
		PayloadSize: int(PayloadSize),
		Seed:        Seed,
		Link: simulation.Link{
			QueueLengthPackets:   int(QueueLength),
			QueueDelay:           simulation.Duration(QueueDelay),
			DelayStdDev:          simulation.Duration(DelayStdDev),
			LinkCapacity:         int64(LinkCapacity),
			LossPercent:          LossPercent,
			AvgBurstLossLength:   BurstLength,
			AllowReordering:      AllowReordering,
			PacketOverhead:       int(PacketOverhead),
			DropOldestOnOverflow: DropOldest,
			Policy:               QueuePolicy,
			PolicyDelay:          simulation.Duration(QueuePolicyDelay),
		},
	}
}
