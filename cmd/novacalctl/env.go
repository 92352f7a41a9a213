package main

import (
	"errors"
	"strings"

	"github.com/urfave/cli"

	"novacal/internal/config"
	"novacal/internal/storage"
	logx "novacal/pkg/logx"
)

var ownerFlag = cli.StringFlag{
	Name:  "owner, o",
	Usage: "owner id",
}

// env is the loaded config and opened store shared by every command.
type env struct {
	cfg   *config.Config
	store storage.Store
	log   logx.Logger
}

func (e *env) Close() error { return e.store.Close() }

// openStore is replaced in tests.
var openStore = storage.Open

func openEnv(c *cli.Context) (*env, error) {
	cfg, err := config.NewConfigManager(c.GlobalString("config")).Load()
	if err != nil {
		return nil, err
	}
	log := logx.NewConsole("warn")
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	store, err := openStore(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, store: store, log: log}, nil
}

func requireOwner(c *cli.Context) (string, error) {
	owner := strings.TrimSpace(c.String("owner"))
	if owner == "" {
		return "", errors.New("--owner is required")
	}
	return owner, nil
}
