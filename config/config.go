// Package config loads and validates the node-wide TOML configuration,
// gathering every subsystem's Config into one file a node operator edits
// once rather than a flag per tunable.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"

	"github.com/nervosnetwork/ckb-go/chain"
	"github.com/nervosnetwork/ckb-go/store"
	"github.com/nervosnetwork/ckb-go/sync"
	"github.com/nervosnetwork/ckb-go/txpool"
)

// tomlSettings keeps TOML keys identical to the Go struct field names, so
// a config file reads like the struct it populates, and turns an unknown
// key into an error that names the struct it belongs to instead of
// silently ignoring a typo.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see %s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// Config aggregates every subsystem's tunables under one node-level
// document.
type Config struct {
	DataDir string

	Store store.DBConfig
	Chain chain.Config
	Pool  txpool.Config
	Sync  sync.Config
}

// Default seeds every field from its subsystem's own DefaultConfig,
// following the same sanitize-and-default contract each subsystem
// already exposes.
func Default() Config {
	return Config{
		DataDir: "./data",
		Store:   store.DBConfig{DBType: store.LevelDBType, Partitioned: true},
		Chain:   chain.DefaultConfig,
		Pool:    txpool.DefaultConfig,
		Sync:    sync.DefaultConfig,
	}
}

// Load reads a TOML file into a copy of Default, so a config file only
// needs to mention the fields it overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		var lineErr *toml.LineError
		if errors.As(err, &lineErr) {
			return cfg, fmt.Errorf("%s, %w", path, err)
		}
		return cfg, err
	}
	return cfg, nil
}

// Dump writes cfg as TOML to w, the inverse of Load: the fully resolved
// configuration an operator would otherwise have to infer from defaults
// scattered across every subsystem.
func Dump(w io.Writer, cfg Config) error {
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
