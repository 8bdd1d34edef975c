package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/teamboard/internal/config"
	"github.com/Joseda-hg/teamboard/internal/web"
)

func tokenCmd(opts *options) *cobra.Command {
	var (
		ttl    time.Duration
		save   bool
		dbPath string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user of the local server db",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := opts.load()
			if err != nil {
				return err
			}
			userID := cfg.UserID
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			if dbPath != "" {
				cfg.Server.DBPath = dbPath
			}
			if cfg.Server.DBPath == "" {
				cfg.Server.DBPath = filepath.Join(filepath.Dir(cfgPath), "teamboard.db")
			}
			if cfg.Server.JWTSecret == "" {
				return fmt.Errorf("server.jwt_secret is not configured")
			}

			store, err := openStore(cfg.Server.DBPath)
			if err != nil {
				return err
			}
			defer store.DB.Close()

			user, err := store.GetUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			token, err := web.GenerateToken(cfg.Server.JWTSecret, user, ttl)
			if err != nil {
				return err
			}

			if save {
				cfg.Token = token
				cfg.UserID = user.ID
				if err := config.Save(cfgPath, cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved token for %s to %s\n", user.Name, cfgPath)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "write the token into the config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite db path")
	return cmd
}
