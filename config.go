package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	adminPassword  string
	bind           string
	offlineGrace   time.Duration
	port           int
	prefix         string
	profile        bool
	rematchDelay   time.Duration
	sessionMinutes int
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.adminPassword == "" {
		return errors.New("an --admin-password must be provided")
	}
	if c.sessionMinutes < 0 || c.sessionMinutes > 60 {
		return fmt.Errorf("invalid session length (must be between 0-60 minutes): %d", c.sessionMinutes)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LINKRING")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "linkring",
		Short:         "An icebreaker-event webapp that repeatedly pairs participants and maps their discovered commonalities.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.adminPassword, "admin-password", "", "shared secret for facilitator controls (env: LINKRING_ADMIN_PASSWORD)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: LINKRING_BIND)")
	fs.DurationVar(&cfg.offlineGrace, "offline-grace", 30*time.Second, "time before a disconnected participant is flagged offline (env: LINKRING_OFFLINE_GRACE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: LINKRING_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: LINKRING_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: LINKRING_PROFILE)")
	fs.DurationVar(&cfg.rematchDelay, "rematch-delay", 3*time.Second, "pause before freed participants are re-matched (env: LINKRING_REMATCH_DELAY)")
	fs.IntVar(&cfg.sessionMinutes, "session-minutes", 0, "default event timer length in minutes, 0 to disable (env: LINKRING_SESSION_MINUTES)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: LINKRING_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: LINKRING_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: LINKRING_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: LINKRING_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("linkring v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
