// Command vt is the local terminal-wrapping CLI: it asks a running
// tunnelforge server to spawn a session for the given command, then
// attaches to that session's IPC socket and forwards stdio until the
// session exits.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tunnelforge/tunnelforge/src/config"
	"github.com/tunnelforge/tunnelforge/src/session"
	"github.com/tunnelforge/tunnelforge/src/vtforward"
)

func main() {
	apiBase := flag.String("api", "http://localhost:4020", "tunnelforge API base URL")
	name := flag.String("name", "", "optional session display name")
	workingDir := flag.String("dir", "", "working directory for the spawned command")
	flag.Parse()

	command := flag.Args()
	if len(command) == 0 {
		fmt.Fprintln(os.Stderr, "usage: vt [flags] -- command [args...]")
		os.Exit(2)
	}

	cfg := config.Load()

	opts := vtforward.Options{
		APIBase:    *apiBase,
		Command:    command,
		WorkingDir: *workingDir,
		Name:       *name,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}

	id, err := vtforward.CreateSession(opts)
	if err != nil {
		logrus.Fatalf("vt: %v", err)
	}

	dir := session.Dir(cfg.ControlRoot, id)
	socketPath := session.SocketPath(dir)

	if err := vtforward.Forward(socketPath, opts); err != nil {
		logrus.Fatalf("vt: %v", err)
	}
}
