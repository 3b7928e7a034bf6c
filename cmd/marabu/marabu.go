// Package marabu is the command line of the node: run the daemon, import objects from a
// file and inspect the chain tip.
package marabu

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marabu-network/marabu/daemon"
	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/services/p2p"
	"github.com/marabu-network/marabu/settings"
	"github.com/marabu-network/marabu/tracing"
	"github.com/marabu-network/marabu/ulogger"
	"github.com/ordishs/gocore"
	"github.com/urfave/cli/v2"
)

// maxLineSize bounds one object in an import file.
const maxLineSize = 16 * 1024 * 1024

func Run(progname, version, commit string, args []string) error {
	gocore.SetInfo(progname, version, commit)

	app := &cli.App{
		Name:    progname,
		Usage:   "Marabu proof-of-work node",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "network",
				Usage: "network to run on (mainnet or regtest), overrides the network setting",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start the node and serve health checks and metrics until interrupted",
				Action: runNode,
			},
			{
				Name:   "import",
				Usage:  "Validate and store the objects of a file holding one JSON object per line",
				Action: importObjects,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "file to read objects from",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "stop-on-error",
						Usage: "stop at the first rejected object",
					},
				},
			},
			{
				Name:   "tip",
				Usage:  "Print the current chain tip",
				Action: printTip,
			},
		},
	}

	return app.Run(args)
}

func newSettings(c *cli.Context) *settings.Settings {
	if network := c.String("network"); network != "" {
		gocore.Config().Set("network", network)
	}

	return settings.NewSettings()
}

func newLogger(tSettings *settings.Settings, service string) ulogger.Logger {
	return ulogger.New(service,
		ulogger.WithLevel(tSettings.LogLevel),
		ulogger.WithLoggerType(tSettings.LoggerType),
		ulogger.WithFilename(tSettings.LoggerFile),
	)
}

func runNode(c *cli.Context) error {
	tSettings := newSettings(c)
	logger := newLogger(tSettings, c.App.Name)

	stats := gocore.Config().Stats()
	logger.Infof("STATS\n%s\nVERSION\n-------\n%s\n\n", stats, c.App.Version)

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, c.App.Name, tSettings)
	if err != nil {
		return err
	}

	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warnf("failed to flush traces: %v", err)
		}
	}()

	d := daemon.New(tSettings)
	if err := d.Start(ctx); err != nil {
		return err
	}

	d.ServeHealth()

	<-ctx.Done()

	logger.Infof("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return d.Stop(shutdownCtx)
}

func importObjects(c *cli.Context) (err error) {
	tSettings := newSettings(c)
	logger := newLogger(tSettings, "import")

	f, err := os.Open(c.String("file"))
	if err != nil {
		return errors.NewInvalidArgumentError("failed to open import file", err)
	}
	defer f.Close()

	ctx := c.Context

	d := daemon.New(tSettings)
	if err = d.Start(ctx); err != nil {
		return err
	}

	defer func() {
		if stopErr := d.Stop(context.Background()); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	var (
		line     int
		accepted int
		rejected int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line++

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		if err = d.HandleObject(ctx, raw, p2p.NoPeer); err != nil {
			rejected++

			logger.Warnf("line %d rejected with %s: %s", line, errors.Name(err), errors.Description(err))

			if c.Bool("stop-on-error") {
				return err
			}

			continue
		}

		accepted++
	}

	if err = scanner.Err(); err != nil {
		return errors.NewProcessingError("failed to read import file at line %d", line+1, err)
	}

	tip, height := d.ChainTip()
	logger.Infof("imported %d objects, rejected %d, chain tip %s at height %d", accepted, rejected, tip.ID(), height)

	return nil
}

func printTip(c *cli.Context) (err error) {
	tSettings := newSettings(c)

	d := daemon.New(tSettings, daemon.WithLoggerFactory(func(string) ulogger.Logger {
		return ulogger.New("tip", ulogger.WithLevel("ERROR"), ulogger.WithLoggerType(tSettings.LoggerType))
	}))

	if err = d.Start(c.Context); err != nil {
		return err
	}

	defer func() {
		if stopErr := d.Stop(context.Background()); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	tip, height := d.ChainTip()

	_, err = fmt.Fprintf(c.App.Writer, "%s %d\n", tip.ID(), height)

	return err
}
