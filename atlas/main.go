// Package main defines the Shadow Atlas pipeline binary: it acquires U.S.
// political boundary data from registered portals, validates it, and seals a
// Merkle-committed snapshot.
package main

import (
	"fmt"
	"os"
	runtimeDebug "runtime/debug"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/flags"
	"github.com/shadowatlas/shadow-atlas/atlas/node"
	"github.com/shadowatlas/shadow-atlas/shared/cmd"
	"github.com/shadowatlas/shadow-atlas/shared/logutil"
	"github.com/shadowatlas/shadow-atlas/shared/version"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"go.opencensus.io/trace"
	_ "go.uber.org/automaxprocs"
)

var appFlags = []cli.Flag{
	flags.StatesFlag,
	flags.LayersFlag,
	flags.SourceIDsFlag,
	flags.MaxParallelFlag,
	flags.RateLimitPerHostFlag,
	flags.MinQualityScoreFlag,
	flags.NoHaltOnCompletenessFlag,
	flags.NoHaltOnTopologyFlag,
	flags.NoHaltOnCoordinateFlag,
	flags.MerkleMinDepthFlag,
	flags.ExportDirFlag,
	flags.SnapshotNotesFlag,
	flags.TigerVintageFlag,
	flags.DisableProgressFlag,
	cmd.DataDirFlag,
	cmd.SourcesFileFlag,
	cmd.VerbosityFlag,
	cmd.LogFormat,
	cmd.LogFileName,
	cmd.MonitoringPortFlag,
	cmd.DisableMonitoringFlag,
	cmd.EnableTracingFlag,
	cmd.ClearDB,
}

func main() {
	log := logrus.WithField("prefix", "main")
	app := cli.App{}
	app.Name = "atlas"
	app.Usage = "builds a verifiable, Merkle-committed catalog of U.S. political boundaries"
	app.Action = runPipeline
	app.Version = version.GetVersion()
	app.Flags = appFlags

	app.Before = func(ctx *cli.Context) error {
		format := ctx.String(cmd.LogFormat.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			// If persistent log files are written - we disable the log messages coloring because
			// the colors are ANSI codes and seen as gibberish in the log files.
			formatter.DisableColors = ctx.String(cmd.LogFileName.Name) != ""
			logrus.SetFormatter(formatter)
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			return fmt.Errorf("unknown log format %s", format)
		}

		logFileName := ctx.String(cmd.LogFileName.Name)
		if logFileName != "" {
			if err := logutil.ConfigurePersistentLogging(logFileName); err != nil {
				log.WithError(err).Error("Failed to configuring logging to disk.")
			}
		}
		return nil
	}

	defer func() {
		if x := recover(); x != nil {
			log.Errorf("Runtime panic: %v\n%v", x, string(runtimeDebug.Stack()))
			panic(x)
		}
	}()

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		var exit *node.ExitCodeError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		os.Exit(node.ExitUnexpected)
	}
}

func runPipeline(ctx *cli.Context) error {
	verbosity := ctx.String(cmd.VerbosityFlag.Name)
	level, err := logrus.ParseLevel(verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if ctx.Bool(cmd.EnableTracingFlag.Name) {
		trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})
	}

	atlas, err := node.New(ctx)
	if err != nil {
		return err
	}
	return atlas.Start()
}
