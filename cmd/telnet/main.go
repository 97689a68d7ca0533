// Package main provides the interactive Telnet client.
//
// Usage:
//
//	telnet [flags] <host> <port>
//
// Flags:
//
//	--policy string   negotiation policy: auto, preamble, inline or raw (default "auto")
//	--debug           log every negotiated command to stderr
//
// Under the auto policy the client answers the server's opening negotiation
// when connecting to port 23 and relays raw bytes on any other port.
package main

import (
	"os"
	"path"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/go-netprog/telnet-relay/lib/client"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// GitCommit is set at build time via ldflags
	GitCommit = "unknown"
)

func main() {
	app := cli.NewApp()
	app.Name = path.Base(os.Args[0])
	app.Usage = "Connect to a Telnet server"
	app.UsageText = app.Name + " [--policy P] [--debug] <host> <port>"
	app.Version = Version + " (" + GitCommit + ")"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "policy",
			Value: client.PolicyAuto,
			Usage: "Negotiation policy: auto, preamble, inline or raw",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		newLogger(false).Fatal(err)
	}
}

func run(c *cli.Context) error {
	log := newLogger(c.Bool("debug"))

	if c.NArg() != 2 {
		_ = cli.ShowAppHelp(c)
		return cli.NewExitError("expected exactly two arguments: <host> <port>", 1)
	}
	host := c.Args().Get(0)
	port, err := client.ParsePort(c.Args().Get(1))
	if err != nil {
		log.WithError(err).Fatal("Invalid port")
	}

	cfg := client.DefaultConfig()
	cfg.Policy = c.String("policy")
	cfg.Logger = log

	sess, err := client.Dial(host, port, cfg)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"host": host,
			"port": port,
		}).Fatal("Failed to connect")
	}

	if err := client.Run(sess, os.Stdin, os.Stdout); err != nil {
		log.WithError(err).Fatal("Connection lost")
	}
	log.Debug("Connection closed")
	return nil
}

// newLogger logs to stderr so stdout carries only the relayed payload.
func newLogger(debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	formatter := &logrus.TextFormatter{}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		formatter.ForceColors = true
	} else {
		formatter.DisableColors = true
	}
	if debug {
		log.SetLevel(logrus.DebugLevel)
		formatter.FullTimestamp = true
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	log.SetFormatter(formatter)
	return log
}
