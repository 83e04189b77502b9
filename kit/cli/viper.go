// Package cli binds command line options to flags and environment variables.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Opt is a single command-line option
type Opt struct {
	DestP   interface{} // pointer to the destination
	Flag    string
	Default interface{}
	Desc    string
}

// NewOpt creates a new command line option.
func NewOpt(destP interface{}, flag string, dflt interface{}, desc string) Opt {
	return Opt{
		DestP:   destP,
		Flag:    flag,
		Default: dflt,
		Desc:    desc,
	}
}

// Program parses CLI options
type Program struct {
	// Run is invoked by cobra on execute.
	Run func() error
	// Name is the name of the program in help usage and the env var prefix.
	Name string
	// Opts are the command line/env var options to the program. They apply
	// to every subcommand added to the returned command.
	Opts []Opt
}

// NewCommand creates a new cobra command to be executed that respects env vars.
//
// Uses the upper-case version of the program's name as a prefix
// to all environment variables.
func NewCommand(v *viper.Viper, p *Program) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:           p.Name,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if p.Run != nil {
		cmd.Args = cobra.NoArgs
		cmd.RunE = func(_ *cobra.Command, _ []string) error {
			return p.Run()
		}
	}

	v.SetEnvPrefix(strings.ToUpper(p.Name))
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := BindOptions(v, cmd.PersistentFlags(), p.Opts); err != nil {
		return nil, err
	}
	return cmd, nil
}

// BindOptions adds opts to fs and registers them with v. Each destination
// starts out with the value v resolves for it, so environment variables
// apply unless the flag is given.
func BindOptions(v *viper.Viper, fs *pflag.FlagSet, opts []Opt) error {
	for _, o := range opts {
		switch destP := o.DestP.(type) {
		case *string:
			var d string
			if o.Default != nil {
				d = o.Default.(string)
			}
			fs.StringVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, fs.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetString(o.Flag)
		case *int:
			var d int
			if o.Default != nil {
				d = o.Default.(int)
			}
			fs.IntVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, fs.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetInt(o.Flag)
		case *bool:
			var d bool
			if o.Default != nil {
				d = o.Default.(bool)
			}
			fs.BoolVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, fs.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetBool(o.Flag)
		case *time.Duration:
			var d time.Duration
			if o.Default != nil {
				d = o.Default.(time.Duration)
			}
			fs.DurationVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, fs.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetDuration(o.Flag)
		case *[]string:
			var d []string
			if o.Default != nil {
				d = o.Default.([]string)
			}
			fs.StringSliceVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, fs.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetStringSlice(o.Flag)
		case *zapcore.Level:
			var d zapcore.Level
			if o.Default != nil {
				d = o.Default.(zapcore.Level)
			}
			LevelVar(fs, destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, fs.Lookup(o.Flag)); err != nil {
				return err
			}
			if s := v.GetString(o.Flag); s != "" {
				if err := destP.Set(s); err != nil {
					return fmt.Errorf("%s: %w", o.Flag, err)
				}
			}
		default:
			return fmt.Errorf("unknown destination type %T for option %s", o.DestP, o.Flag)
		}
	}
	return nil
}
