package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wireguard_android_wrapper/core/autoconnect"
)

const envPrefix = "WG_AC"

type app struct {
	v   *viper.Viper
	out io.Writer
	log *logrus.Logger
}

func newRootCmd(out io.Writer, log *logrus.Logger) *cobra.Command {
	a := &app{v: viper.New(), out: out, log: log}
	defaults := autoconnect.DefaultOptions()

	root := &cobra.Command{
		Use:           "acctl",
		Short:         "Provision WireGuard tunnels from an auto-connect server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, toml or json)")
	flags.String("server", "", "auto-connect server address")
	flags.String("port", "", "auto-connect server port")
	flags.String("private-key", "", "base64 private key; generated when empty")
	flags.String("public-key", "", "base64 public key; derived from the private key when empty")
	flags.Int("listen-port", defaults.ListenPort, "listen port advertised to the server")
	flags.Int("attempts", defaults.Attempts, "exchange attempts per command")
	flags.Duration("dial-timeout", defaults.DialTimeout, "TCP dial timeout")
	flags.Duration("io-timeout", defaults.IOTimeout, "per-exchange read/write timeout")
	flags.Duration("retry-delay", defaults.RetryDelay, "delay between attempts")
	flags.Bool("verbose", false, "log protocol exchanges")
	_ = a.v.BindPFlags(flags)

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(a.upCmd(), a.downCmd(), a.genkeyCmd())
	return root
}

func (a *app) load() error {
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return oops.In("acctl").With("config", path).Wrapf(err, "read config")
		}
		a.log.WithField("config", a.v.ConfigFileUsed()).Debug("config_loaded")
	}
	if a.v.GetBool("verbose") {
		a.log.SetLevel(logrus.DebugLevel)
	}
	return nil
}

func (a *app) options() autoconnect.Options {
	return autoconnect.Options{
		DialTimeout: a.v.GetDuration("dial-timeout"),
		IOTimeout:   a.v.GetDuration("io-timeout"),
		Attempts:    a.v.GetInt("attempts"),
		RetryDelay:  a.v.GetDuration("retry-delay"),
		ListenPort:  a.v.GetInt("listen-port"),
	}
}

func (a *app) client() *autoconnect.Client {
	return autoconnect.NewClient(a.options(), a.log)
}

// keys resolves the key pair from settings. A missing private key is generated only
// when generate is set; a missing public key is derived from the private key.
func (a *app) keys(generate bool) (priv, pub string, err error) {
	priv = a.v.GetString("private-key")
	pub = a.v.GetString("public-key")
	if priv == "" && !generate {
		if pub == "" {
			return "", "", oops.In("acctl").Errorf("a public key or private key is required")
		}
		return "", pub, nil
	}

	var key autoconnect.Key
	if priv == "" {
		key, err = autoconnect.GeneratePrivateKey()
		a.log.Debug("private_key_generated")
	} else {
		key, err = autoconnect.ParseKey(priv)
	}
	if err != nil {
		return "", "", err
	}
	if pub == "" {
		public, err := key.PublicKey()
		if err != nil {
			return "", "", err
		}
		pub = public.String()
	}
	return key.String(), pub, nil
}

func (a *app) upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Request a tunnel and print its wg-quick config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, pub, err := a.keys(true)
			if err != nil {
				return err
			}
			ctx, cancel := a.deadline(cmd)
			defer cancel()
			cfg, err := a.client().Up(ctx, a.v.GetString("server"), a.v.GetString("port"), priv, pub)
			if err != nil {
				return err
			}
			_, err = io.WriteString(a.out, cfg)
			return err
		},
	}
}

func (a *app) downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Ask the server to forget a public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, pub, err := a.keys(false)
			if err != nil {
				return err
			}
			ctx, cancel := a.deadline(cmd)
			defer cancel()
			return a.client().Down(ctx, a.v.GetString("server"), a.v.GetString("port"), pub)
		},
	}
}

func (a *app) genkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Print a new key pair",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			priv, err := autoconnect.GeneratePrivateKey()
			if err != nil {
				return err
			}
			pub, err := priv.PublicKey()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "PrivateKey = %s\nPublicKey = %s\n", priv, pub)
			return err
		},
	}
}

// deadline bounds a whole command so a wedged server cannot hang the shell.
func (a *app) deadline(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, overall(a.options()))
}

func overall(opts autoconnect.Options) time.Duration {
	attempts := max(opts.Attempts, 1)
	per := opts.DialTimeout + 2*opts.IOTimeout
	return time.Duration(attempts)*per + time.Duration(attempts-1)*opts.RetryDelay + time.Second
}
