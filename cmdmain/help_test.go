package cmdmain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubCmd struct{}

func (fakeSubCmd) Help() string {
	return "does nothing"
}

func (fakeSubCmd) Exec(string, []string) error {
	return nil
}

func TestHelp(t *testing.T) {
	RegisterSubCmd("noop", func() SubCmd { return fakeSubCmd{} })
	t.Cleanup(func() { delete(subCmds, "noop") })

	var buf bytes.Buffer
	h := &help{out: &buf}
	require.NoError(t, h.Exec("netemu", []string{"noop", "help"}))
	assert.Contains(t, buf.String(), "noop: does nothing\nRun `netemu noop -h` to show its flags\n")
	assert.Contains(t, buf.String(), "help: Print help, optionally for the given commands")

	assert.ErrorContains(t, h.Exec("netemu", []string{"missing"}), `unknown subcommand: "missing"`)
}
