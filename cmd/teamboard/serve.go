package main

import (
	"fmt"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Joseda-hg/teamboard/internal/broker"
	"github.com/Joseda-hg/teamboard/internal/config"
	"github.com/Joseda-hg/teamboard/internal/db"
	"github.com/Joseda-hg/teamboard/internal/web"
)

func serveCmd(opts *options) *cobra.Command {
	var (
		dbPath   string
		port     int
		seedPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task server with its websocket broker",
		Long: `Run the REST API and the websocket broker on one port.

Examples:
  teamboard serve --port 8000
  teamboard serve --db ./teamboard.db --seed ./seed.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := opts.load()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Server.DBPath = dbPath
			}
			if cfg.Server.DBPath == "" {
				cfg.Server.DBPath = filepath.Join(filepath.Dir(cfgPath), "teamboard.db")
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if seedPath != "" {
				cfg.Server.SeedPath = seedPath
			}
			if cfg.Server.JWTSecret == "" {
				return fmt.Errorf("server.jwt_secret is not configured")
			}
			if cfg.Server.AppKey == "" || cfg.Server.AppSecret == "" {
				return fmt.Errorf("server.app_key and server.app_secret are not configured")
			}

			store, err := openStore(cfg.Server.DBPath)
			if err != nil {
				return err
			}
			defer store.DB.Close()

			if cfg.Server.SeedPath != "" {
				seed, err := web.LoadSeed(cfg.Server.SeedPath)
				if err != nil {
					return err
				}
				if err := seed.Apply(cmd.Context(), store); err != nil {
					return err
				}
			}

			hub := broker.New(cfg.Server.AppKey, cfg.Server.AppSecret)
			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			glog.Infof("[srv]listening on %s, db %s", addr, cfg.Server.DBPath)
			return web.NewServer(store, hub, cfg.Server.JWTSecret).ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite db path")
	cmd.Flags().IntVar(&port, "port", 0, "listen port")
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML fixture applied to an empty db")
	return cmd
}

func openStore(dbPath string) (*db.Store, error) {
	if err := config.EnsureDir(dbPath); err != nil {
		return nil, err
	}

	sqlDB, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	return db.NewStore(sqlDB), nil
}
