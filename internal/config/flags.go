package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers one flag per config key on fs, with the built-in
// defaults shown in help output. Only flags the user actually sets override
// lower-priority sources.
func BindFlags(fs *pflag.FlagSet) {
	def := Default()
	for _, f := range fields() {
		if fs.Lookup(f.flag) != nil {
			continue
		}
		switch f.kind {
		case kindInt:
			fs.Int(f.flag, *f.num(def), f.usage)
		case kindBool:
			fs.Bool(f.flag, *f.flg(def), f.usage)
		default:
			fs.String(f.flag, *f.str(def), f.usage)
		}
	}
}

// applyFlags copies explicitly set flags into cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet, sources map[string]ConfigSource) error {
	if fs == nil {
		return nil
	}
	for _, f := range fields() {
		fl := fs.Lookup(f.flag)
		if fl == nil || !fl.Changed {
			continue
		}
		if err := f.set(cfg, fl.Value.String()); err != nil {
			return err
		}
		sources[f.key] = SourceFlag
	}
	return nil
}
