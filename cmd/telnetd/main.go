// Package main provides the minimal Telnet server.
//
// Usage:
//
//	telnetd [flags]
//
// Flags:
//
//	--listen string   listen address (default ":23")
//	--concurrent      serve each client on its own goroutine
//	--greeting string text sent after the offers (default "Welcome to Simple Telnet Server\r\n")
//	--debug           enable debug logging
//
// Each client is offered WILL ECHO and DO SUPPRESS-GO-AHEAD, greeted, and
// then has its input echoed back while any option it negotiates is refused.
package main

import (
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/go-netprog/telnet-relay/lib/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Build info
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	app := cli.NewApp()
	app.Name = path.Base(os.Args[0])
	app.Usage = "Minimal Telnet server"
	app.Version = Version + " (" + GitCommit + ")"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen",
			Value: server.DefaultListenAddr,
			Usage: "TCP listen address",
		},
		cli.BoolFlag{
			Name:  "concurrent",
			Usage: "Serve clients concurrently instead of one at a time",
		},
		cli.StringFlag{
			Name:  "greeting",
			Value: server.DefaultGreeting,
			Usage: "Text sent to each client after the offers; empty disables it",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
	app.Action = serve

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("telnetd failed")
	}
}

func serve(c *cli.Context) error {
	if c.NArg() != 0 {
		return cli.NewExitError("telnetd takes no arguments", 1)
	}

	// Configure logging
	log := logrus.New()
	log.SetOutput(os.Stdout)
	formatter := &logrus.TextFormatter{DisableColors: !term.IsTerminal(int(os.Stdout.Fd()))}
	if c.Bool("debug") {
		log.SetLevel(logrus.DebugLevel)
		formatter.FullTimestamp = true
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	log.SetFormatter(formatter)

	log.WithFields(logrus.Fields{
		"version":   Version,
		"buildTime": BuildTime,
		"commit":    GitCommit,
	}).Info("Starting Telnet server")

	cfg := server.DefaultConfig().
		WithListenAddr(c.String("listen")).
		WithConcurrent(c.Bool("concurrent")).
		WithGreeting(c.String("greeting"))

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to create server")
		return cli.NewExitError(err.Error(), 1)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case serveErr = <-errChan:
		if serveErr != nil {
			log.WithError(serveErr).Error("Server error")
		}
	}

	log.Info("Shutting down...")
	if err := srv.Close(); err != nil {
		log.WithError(err).Warn("Error stopping server")
	}

	log.WithField("sessions", len(srv.RecentSessions())).Info("Telnet server stopped")
	if serveErr != nil {
		return cli.NewExitError(serveErr.Error(), 1)
	}
	return nil
}
