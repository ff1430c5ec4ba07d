package commands_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/NitinDabar/e2ee-chat/cmd/e2ee/commands"
	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/relay"
)

const pass = "Tr0ub4dor&3-horse"

type cli struct {
	t     *testing.T
	home  string
	relay string
}

func (c cli) run(device string, args ...string) (string, error) {
	c.t.Helper()
	root := commands.NewRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{
		"--home", c.home, "--relay", c.relay, "--device", device,
		"--passphrase", pass, "--store", "file", "--log-level", "error",
	}, args...))
	err := commands.Run(context.Background(), root)
	return out.String(), err
}

func (c cli) must(device string, args ...string) string {
	c.t.Helper()
	out, err := c.run(device, args...)
	require.NoError(c.t, err, out)
	return out
}

func TestCLIConversation(t *testing.T) {
	t.Chdir(t.TempDir())
	srv := httptest.NewServer(relay.NewRouter(relay.NewHub(nil), nil, nil, zerolog.Nop()))
	defer srv.Close()
	c := cli{t: t, home: t.TempDir(), relay: srv.URL}

	for _, d := range []string{"alice", "bob"} {
		require.Contains(t, c.must(d, "init"), "Fingerprint: ")
		require.Contains(t, c.must(d, "register"), "Registered "+d)
	}
	fp := strings.TrimPrefix(strings.TrimSpace(c.must("alice", "fingerprint")), "Fingerprint: ")
	require.Len(t, fp, 20)

	_, err := c.run("alice", "init")
	require.ErrorIs(t, err, domain.ErrDeviceExists)

	require.Contains(t, c.must("alice", "start-session", "bob"), "Safety number: ")
	require.Equal(t, "sent\n", c.must("alice", "send", "bob", "hello", "there"))
	require.Contains(t, c.must("bob", "recv"), "[alice] hello there")

	require.Contains(t, c.must("alice", "history", "bob"), "[me] hello there")
	require.Contains(t, c.must("bob", "history", "alice"), "[alice] hello there")
	require.Contains(t, c.must("bob", "conversations"), "alice\t")
	require.Contains(t, c.must("bob", "history", "--clear", "alice"), "cleared")
	require.Contains(t, c.must("bob", "history", "alice"), "No messages with alice.")

	raw := strings.TrimSpace(c.must("bob", "safety-number", "--raw", "alice"))
	require.Contains(t, c.must("alice", "verify", "bob", raw), "verified")

	_, err = c.run("alice", "verify", "bob", "AAAA")
	require.Error(t, err)
	_, err = c.run("alice", "safety-number", "carol")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.Contains(t, c.must("bob", "bundle", "--limit", "2"), `"signed_pre_key"`)
	require.Contains(t, c.must("bob", "rotate"), "published")
}
