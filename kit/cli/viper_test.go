package cli

import (
	"fmt"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func ExampleNewCommand() {
	var path string
	var number int
	var sync bool
	var timeout time.Duration
	var families []string
	var logLevel zapcore.Level
	cmd, err := NewCommand(viper.New(), &Program{
		Run: func() error {
			fmt.Println(path)
			fmt.Println(number)
			fmt.Println(sync)
			fmt.Println(timeout)
			fmt.Println(families)
			fmt.Println(logLevel.String())
			return nil
		},
		Name: "myprogram",
		Opts: []Opt{
			NewOpt(&path, "bolt-path", "/var/lib/kvquery.bolt", "database file"),
			NewOpt(&number, "parallel-scans", 2, "concurrent scans"),
			NewOpt(&sync, "sync", true, "fsync every commit"),
			NewOpt(&timeout, "dial-timeout", time.Minute, "how long to wait for the store"),
			NewOpt(&families, "families", []string{"hosts", "events"}, "column families"),
			NewOpt(&logLevel, "log-level", zapcore.WarnLevel, "log level"),
		},
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
	}
	// Output:
	// /var/lib/kvquery.bolt
	// 2
	// true
	// 1m0s
	// [hosts events]
	// warn
}

func Test_NewProgram(t *testing.T) {
	tests := []struct {
		name    string
		envVal  string
		args    []string
		expPath string
	}{
		{name: "default", expPath: "default.bolt"},
		{name: "env", envVal: "env.bolt", expPath: "env.bolt"},
		{name: "flag", args: []string{"--bolt-path", "flag.bolt"}, expPath: "flag.bolt"},
		{name: "flag over env", envVal: "env.bolt", args: []string{"--bolt-path", "flag.bolt"}, expPath: "flag.bolt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envVal != "" {
				t.Setenv("TEST_BOLT_PATH", tt.envVal)
			}

			var got string
			cmd, err := NewCommand(viper.New(), &Program{
				Name: "test",
				Run:  func() error { return nil },
				Opts: []Opt{NewOpt(&got, "bolt-path", "default.bolt", "")},
			})
			require.NoError(t, err)

			cmd.SetArgs(tt.args)
			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.expPath, got)
		})
	}
}

func Test_LevelFromEnv(t *testing.T) {
	t.Setenv("TEST_LOG_LEVEL", "debug")

	var level zapcore.Level
	_, err := NewCommand(viper.New(), &Program{
		Name: "test",
		Opts: []Opt{NewOpt(&level, "log-level", zapcore.InfoLevel, "")},
	})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)
}

func Test_UnknownDestination(t *testing.T) {
	var f float64
	_, err := NewCommand(viper.New(), &Program{
		Name: "test",
		Opts: []Opt{NewOpt(&f, "ratio", 0.5, "")},
	})
	assert.Error(t, err)
}

func TestLevelVar(t *testing.T) {
	var level zapcore.Level
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	LevelVar(fs, &level, "log-level", zapcore.ErrorLevel, "")
	assert.Equal(t, zapcore.ErrorLevel, level)
	assert.Equal(t, "error", fs.Lookup("log-level").Value.String())

	require.NoError(t, fs.Parse([]string{"--log-level", "debug"}))
	assert.Equal(t, zapcore.DebugLevel, level)

	err := fs.Set("log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown log level "loud"`)
	assert.Equal(t, zapcore.DebugLevel, level)
}
