package main

import (
	"context"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/bolt"
	"github.com/influxdata/kvquery/kit/cli"
	"github.com/influxdata/kvquery/kit/platform/errors"
	"github.com/influxdata/kvquery/logger"
	"github.com/influxdata/kvquery/planner"
	"github.com/influxdata/kvquery/storage"
	"github.com/influxdata/kvquery/timestamp"
)

// app holds the options shared by every subcommand and the stack opened
// from them.
type app struct {
	boltPath      string
	familiesPath  string
	logLevel      zapcore.Level
	logFormat     string
	maxKeys       int
	maxColumns    int
	parallelScans int
	dialTimeout   time.Duration
	stats         bool

	stdout io.Writer
	stderr io.Writer

	log      *zap.Logger
	families []kvquery.ColumnFamily
	dialer   *bolt.Dialer
	client   *storage.Client
	planner  *planner.Planner
	registry *prometheus.Registry
}

func kvqueryDir() (string, error) {
	var dir string
	// By default, store the database in the current user's home directory.
	u, err := user.Current()
	if err == nil {
		dir = u.HomeDir
	} else if home := os.Getenv("HOME"); home != "" {
		dir = home
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	return filepath.Join(dir, ".kvquery"), nil
}

func newCommand(v *viper.Viper, stdout, stderr io.Writer) (*cobra.Command, error) {
	dir, err := kvqueryDir()
	if err != nil {
		return nil, err
	}

	a := &app{stdout: stdout, stderr: stderr}
	plannerConfig := planner.NewConfig()
	prog := &cli.Program{
		Name: "kvquery",
		Opts: []cli.Opt{
			cli.NewOpt(&a.boltPath, "bolt-path", bolt.NewConfig(dir).Path, "path to the boltdb database"),
			cli.NewOpt(&a.familiesPath, "families", filepath.Join(dir, "families.toml"), "path to the TOML or YAML file describing the column families"),
			cli.NewOpt(&a.logLevel, "log-level", zapcore.WarnLevel, "supported log levels are debug, info, warn and error"),
			cli.NewOpt(&a.logFormat, "log-format", "auto", "log output format: auto, console, json or logfmt"),
			cli.NewOpt(&a.maxKeys, "max-keys", plannerConfig.MaxKeys, "maximum number of keys returned by a single scan"),
			cli.NewOpt(&a.maxColumns, "max-columns", plannerConfig.MaxColumns, "maximum number of columns returned per key"),
			cli.NewOpt(&a.parallelScans, "parallel-scans", plannerConfig.ParallelScans, "number of pushed down scans of one filter run concurrently"),
			cli.NewOpt(&a.dialTimeout, "dial-timeout", storage.DefaultDialTimeout, "timeout for opening the database"),
			cli.NewOpt(&a.stats, "stats", false, "print store and planner metrics after the command"),
		},
	}

	cmd, err := cli.NewCommand(v, prog)
	if err != nil {
		return nil, err
	}
	cmd.Short = "Query column families stored in a boltdb file"
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.AddCommand(
		a.familiesCmd(),
		a.putCmd(),
		a.getCmd(),
		a.queryCmd(),
		a.countCmd(),
		a.deleteCmd(),
		a.updateCmd(),
		a.explainCmd(),
		a.verifyIndexCmd(),
	)
	return cmd, nil
}

// descriptor is the layout of the column family file.
type descriptor struct {
	ColumnFamilies []kvquery.ColumnFamily `toml:"column-family" yaml:"column-family"`
}

// decodeDescriptor reads a TOML descriptor, or a YAML one when path ends in
// .yaml or .yml.
func decodeDescriptor(path string) (descriptor, error) {
	var d descriptor
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		buf, err := os.ReadFile(path)
		if err != nil {
			return d, err
		}
		return d, yaml.Unmarshal(buf, &d)
	default:
		_, err := toml.DecodeFile(path, &d)
		return d, err
	}
}

func loadFamilies(path string) ([]kvquery.ColumnFamily, error) {
	d, err := decodeDescriptor(path)
	if err != nil {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "unable to read column families from " + path,
			Err:  err,
		}
	}
	if len(d.ColumnFamilies) == 0 {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  path + " describes no column family",
		}
	}

	seen := make(map[string]bool, len(d.ColumnFamilies))
	for _, cf := range d.ColumnFamilies {
		switch {
		case cf.Name == "":
			return nil, &errors.Error{Code: errors.EInvalid, Msg: "column family without a name"}
		case cf.PKColumn == "":
			return nil, &errors.Error{Code: errors.EInvalid, Msg: "column family " + cf.Name + " has no pk-column"}
		case seen[cf.Name]:
			return nil, &errors.Error{Code: errors.EConflict, Msg: "column family " + cf.Name + " is described twice"}
		case cf.CompoundKey != nil && len(cf.CompoundKey.Fields) == 0:
			return nil, &errors.Error{Code: errors.EInvalid, Msg: "compound key of " + cf.Name + " has no fields"}
		}
		seen[cf.Name] = true
	}
	return d.ColumnFamilies, nil
}

// setup builds the logger and the dialer. It does not touch the database.
func (a *app) setup() error {
	conf := logger.Config{Format: a.logFormat, Level: a.logLevel}
	log, err := conf.New(a.stderr)
	if err != nil {
		return err
	}
	a.log = log

	families, err := loadFamilies(a.familiesPath)
	if err != nil {
		return err
	}
	a.families = families

	boltConfig := bolt.NewConfig(filepath.Dir(a.boltPath))
	boltConfig.Path = a.boltPath
	a.dialer = &bolt.Dialer{
		Config:   boltConfig,
		Families: families,
		Logger:   log,
	}
	return nil
}

// open connects a storage client to the database and builds a planner on
// top of it.
func (a *app) open(ctx context.Context) error {
	if err := a.setup(); err != nil {
		return err
	}

	storageConfig := storage.NewConfig()
	storageConfig.DialTimeout = a.dialTimeout
	a.client = storage.NewClient(a.dialer,
		storage.WithLogger(a.log.With(zap.String("service", "storage"))),
		storage.WithConfig(storageConfig))
	if err := a.client.Open(ctx); err != nil {
		return err
	}

	a.planner = planner.New(a.client, a.families,
		planner.WithLogger(a.log.With(zap.String("service", "planner"))),
		planner.WithConfig(planner.Config{
			MaxKeys:       a.maxKeys,
			MaxColumns:    a.maxColumns,
			ParallelScans: a.parallelScans,
		}),
		planner.WithTimestampSource(timestamp.New()))

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(a.planner.PrometheusCollectors()...)
	a.registry.MustRegister(a.client.PrometheusCollectors()...)
	a.registry.MustRegister(a.dialer)
	return nil
}

func (a *app) close() error {
	var err error
	if a.client != nil {
		err = multierr.Append(err, a.client.Close())
	}
	if a.log != nil {
		// Syncing a terminal fails on some platforms.
		_ = a.log.Sync()
	}
	return err
}

// run opens the stack, runs fn and closes the stack again. fn logs through
// the logger carried by its context.
func (a *app) run(cmd *cobra.Command, fn func(context.Context, *planner.Planner) error) (err error) {
	defer func() {
		err = multierr.Append(err, a.close())
	}()
	ctx := cmd.Context()
	if err := a.open(ctx); err != nil {
		return err
	}
	ctx = logger.NewContextWithLogger(ctx, a.log.With(zap.String("command", cmd.Name())))
	if err := fn(ctx, a.planner); err != nil {
		return err
	}
	if a.stats {
		return a.writeStats()
	}
	return nil
}

func (a *app) writeStats() error {
	mfs, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(a.stderr, mf); err != nil {
			return err
		}
	}
	return nil
}

// family returns the column family named name.
func (a *app) family(name string) (kvquery.ColumnFamily, error) {
	for _, cf := range a.families {
		if cf.Name == name {
			return cf, nil
		}
	}
	return kvquery.ColumnFamily{}, &errors.Error{
		Code: errors.ENotFound,
		Msg:  "column family " + name + " not found",
	}
}
