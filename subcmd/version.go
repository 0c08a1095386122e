package subcmd

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/mengelbart/netemu"
	"github.com/mengelbart/netemu/cmdmain"
	"github.com/mengelbart/netemu/queue"
)

func init() {
	cmdmain.RegisterSubCmd("version", func() cmdmain.SubCmd { return newVersion() })
}

type Version struct {
	Path      string         `json:"path"`
	Version   string         `json:"version"`
	GitCommit string         `json:"git-commit"`
	GitDate   string         `json:"git-date"`
	GoVersion string         `json:"go-version"`
	Policies  []queue.Policy `json:"queue-policies"`
	Capacity  int            `json:"default-queue-capacity"`
}

func newVersion() *Version {
	v := &Version{
		GoVersion: runtime.Version(),
		Policies:  queue.Policies,
		Capacity:  netemu.DefaultMaxCapacity,
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	v.Path = info.Main.Path
	v.Version = info.Main.Version
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			v.GitCommit = setting.Value
		case "vcs.time":
			v.GitDate = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if modified {
		v.GitCommit += "+dirty"
	}
	return v
}

// Exec implements cmdmain.SubCmd.
func (v *Version) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("version", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print version information as JSON")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Print version information and the supported queue policies

Usage:
	%s version [flags]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	return v.write(os.Stdout, *asJSON)
}

func (v *Version) write(w io.Writer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	policies := make([]string, len(v.Policies))
	for i, p := range v.Policies {
		policies[i] = string(p)
	}
	_, err := fmt.Fprintf(w, `%s
	Version:	%s
	Git commit:	%s
	Built:		%s
	Go Version:	%s
	Queue policies:	%s
	Default queue capacity:	%d packets
`, v.Path, v.Version, v.GitCommit, v.GitDate, v.GoVersion, strings.Join(policies, ", "), v.Capacity)
	return err
}

// Help implements cmdmain.SubCmd.
func (v *Version) Help() string {
	return "version prints out version information and the supported queue policies"
}
