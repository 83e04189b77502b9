package cli

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// levelValue is a pflag.Value writing through to a zapcore.Level.
type levelValue struct {
	p *zapcore.Level
}

func (l levelValue) String() string {
	if l.p == nil {
		return ""
	}
	return l.p.String()
}

func (l levelValue) Set(s string) error {
	if err := l.p.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("unknown log level %q; supported levels are debug, info, warn, error", s)
	}
	return nil
}

func (l levelValue) Type() string {
	return "level"
}

// LevelVar defines a zapcore.Level flag on fs. The flag writes to p, which
// starts out as value.
func LevelVar(fs *pflag.FlagSet, p *zapcore.Level, name string, value zapcore.Level, usage string) {
	*p = value
	fs.Var(levelValue{p: p}, name, usage)
}
