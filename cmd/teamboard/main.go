package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Joseda-hg/teamboard/internal/api"
	"github.com/Joseda-hg/teamboard/internal/config"
	"github.com/Joseda-hg/teamboard/internal/realtime"
	"github.com/Joseda-hg/teamboard/internal/screen"
	"github.com/Joseda-hg/teamboard/internal/tui"
)

var Version = "dev"

type options struct {
	configPath string
	apiURL     string
	token      string
	userID     int64
	date       string
}

func main() {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:          "teamboard",
		Short:        "Team task dashboard with live updates",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// glog reads its flags from the standard flag set.
			return flag.CommandLine.Parse(nil)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			env, shutdown, err := newEnv(cfg)
			if err != nil {
				return err
			}
			defer shutdown()
			return tui.Run(cmd.Context(), env, opts.day())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file path")
	flags.StringVar(&opts.apiURL, "api", "", "API base URL")
	flags.StringVar(&opts.token, "token", "", "bearer token")
	flags.Int64Var(&opts.userID, "user", 0, "user id, overrides the one in the token")
	flags.StringVar(&opts.date, "date", "", "day to show (YYYY-MM-DD), today by default")
	flags.AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(watchCmd(opts))
	rootCmd.AddCommand(tokenCmd(opts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	glog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// load reads the config file and applies the command line overrides.
func (o *options) load() (config.Config, string, error) {
	path, err := resolveConfigPath(o.configPath)
	if err != nil {
		return config.Config{}, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", err
	}
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
	if o.token != "" {
		cfg.Token = o.token
	}
	if o.userID != 0 {
		cfg.UserID = o.userID
	}
	return cfg, path, nil
}

func (o *options) day() string {
	if o.date != "" {
		return o.date
	}
	return time.Now().Format("2006-01-02")
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

// newEnv builds the client side of the dashboard. Realtime stays off when no
// app key is configured and the screens fall back to polling.
func newEnv(cfg config.Config) (screen.Env, func(), error) {
	if cfg.Token == "" {
		return screen.Env{}, nil, fmt.Errorf("no token configured: pass --token or run `teamboard token --save`")
	}
	session, err := api.ParseSessionUnverified(cfg.Token)
	if err != nil {
		return screen.Env{}, nil, err
	}
	if cfg.UserID != 0 {
		session.UserID = cfg.UserID
	}

	env := screen.Env{
		API:          api.NewClient(cfg.APIURL, cfg.Token),
		Session:      session,
		PollInterval: cfg.PollInterval(),
	}
	settings := cfg.RealtimeSettings()
	if !settings.Enabled() {
		glog.V(1).Infof("[rt]disabled, polling every %s", env.PollInterval)
		return env, func() {}, nil
	}
	env.Connector = realtime.NewConnector(settings, realtime.NewHTTPAuthorizer(settings.AuthEndpoint, cfg.Token, settings.AuthTimeout))
	return env, env.Connector.Shutdown, nil
}
