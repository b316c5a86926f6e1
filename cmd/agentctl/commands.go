package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/howeyc/gopass"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/danmuck/agentctl/internal/agent"
	"github.com/danmuck/agentctl/internal/keyfile"
	"github.com/danmuck/agentctl/internal/logging"
)

// cliEnv carries the resolved config and logger for one invocation.
type cliEnv struct {
	cfg cliConfig
	log zerolog.Logger
}

func setup(c *cli.Context) (*cliEnv, error) {
	cfg, err := resolveConfig(c)
	if err != nil {
		return nil, err
	}
	log := logging.ConfigureRuntime("agentctl")
	if cfg.LogLevel != "" {
		lvl, ok := logging.ParseLevel(cfg.LogLevel)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
		}
		// The root logger carries its own level filter, so the global
		// floor alone cannot lower it.
		zerolog.SetGlobalLevel(lvl)
		log = log.Level(lvl)
	}
	return &cliEnv{cfg: cfg, log: log}, nil
}

// withSession dials the agent, runs fn against a live session, then
// shuts the protocol loop down. Dial and the operation each get the
// configured timeout.
func (e *cliEnv) withSession(ctx context.Context, fn func(context.Context, *agent.Session) error) error {
	dialer, err := agent.NewDialer(agent.DialConfig{
		SocketPath:         e.cfg.Socket,
		MaxConnectAttempts: e.cfg.MaxConnectAttempts,
	})
	if err != nil {
		return err
	}
	dialer.SetLogger(e.log)

	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	conn, err := dialer.Dial(dialCtx)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	client, requests, responses := agent.New()
	client.SetLogger(e.log)
	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(context.Background(), conn) }()

	sess := agent.NewSession(requests, responses)
	opCtx, opCancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer opCancel()
	opErr := fn(opCtx, sess)

	sess.Close()
	select {
	case err := <-runDone:
		if opErr == nil && err != nil {
			opErr = err
		}
	case <-time.After(2 * time.Second):
		e.log.Warn().Msg("agent loop did not stop cleanly")
	}
	return opErr
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list identities held by the agent",
		Action: func(c *cli.Context) error {
			env, err := setup(c)
			if err != nil {
				return err
			}
			return env.withSession(c.Context, func(ctx context.Context, sess *agent.Session) error {
				ids, err := sess.List(ctx)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Fprintln(c.App.Writer, "the agent has no identities")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintf(c.App.Writer, "%s %s %s\n", keyfile.Fingerprint(id.Blob), id.Type(), id.Comment)
				}
				return nil
			})
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "add a private key to the agent",
		ArgsUsage: "<private-key-file>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "lifetime",
				Usage: "remove the key after this duration",
			},
			&cli.BoolFlag{
				Name:  "confirm",
				Usage: "require confirmation before each signature",
			},
			&cli.StringFlag{
				Name:  "comment",
				Usage: "comment stored with the key (defaults to the file name)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("add expects one private key file")
			}
			env, err := setup(c)
			if err != nil {
				return err
			}
			path := c.Args().First()
			key, err := loadPrivateKey(path)
			if err != nil {
				return err
			}
			typ, section, err := key.AddPayload()
			if err != nil {
				return err
			}
			comment := filepath.Base(path)
			if c.IsSet("comment") {
				comment = c.String("comment")
			}
			base := agent.AddIdentity{Type: typ, KeyBlob: section, Comment: comment}

			constraints, err := signingConstraints(c)
			if err != nil {
				return err
			}
			return env.withSession(c.Context, func(ctx context.Context, sess *agent.Session) error {
				if len(constraints) > 0 {
					err = sess.AddConstrained(ctx, agent.AddIdentityConstrained{
						AddIdentity: base,
						Constraints: constraints,
					})
				} else {
					err = sess.Add(ctx, base)
				}
				if err != nil {
					return err
				}
				env.log.Info().
					Str("fingerprint", keyfile.Fingerprint(key.PublicBlob())).
					Str("comment", comment).
					Msg("identity added")
				return nil
			})
		},
	}
}

func signingConstraints(c *cli.Context) ([]agent.Constraint, error) {
	var out []agent.Constraint
	if c.IsSet("lifetime") {
		d := c.Duration("lifetime")
		if d < time.Second {
			return nil, fmt.Errorf("lifetime %v is shorter than one second", d)
		}
		secs := int64(d / time.Second)
		if secs > int64(^uint32(0)) {
			return nil, fmt.Errorf("lifetime %v does not fit the protocol", d)
		}
		out = append(out, agent.LifetimeConstraint(uint32(secs)))
	}
	if c.Bool("confirm") {
		out = append(out, agent.ConfirmConstraint())
	}
	return out, nil
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "remove one identity from the agent",
		ArgsUsage: "<public-key-file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("remove expects one public key file")
			}
			env, err := setup(c)
			if err != nil {
				return err
			}
			pub, err := keyfile.LoadPublic(nil, c.Args().First())
			if err != nil {
				return err
			}
			return env.withSession(c.Context, func(ctx context.Context, sess *agent.Session) error {
				if err := sess.Remove(ctx, pub.Blob()); err != nil {
					return err
				}
				env.log.Info().
					Str("fingerprint", keyfile.Fingerprint(pub.Blob())).
					Msg("identity removed")
				return nil
			})
		},
	}
}

func removeAllCommand() *cli.Command {
	return &cli.Command{
		Name:  "remove-all",
		Usage: "remove every identity from the agent",
		Action: func(c *cli.Context) error {
			env, err := setup(c)
			if err != nil {
				return err
			}
			return env.withSession(c.Context, func(ctx context.Context, sess *agent.Session) error {
				if err := sess.RemoveAll(ctx); err != nil {
					return err
				}
				env.log.Info().Msg("all identities removed")
				return nil
			})
		},
	}
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "sign data with a key held by the agent",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "key",
				Usage:    "public key file naming the signer",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "literal data to sign",
			},
			&cli.StringFlag{
				Name:  "in",
				Usage: "file whose contents are signed",
			},
		},
		Action: func(c *cli.Context) error {
			env, err := setup(c)
			if err != nil {
				return err
			}
			data, err := signData(c)
			if err != nil {
				return err
			}
			pub, err := keyfile.LoadPublic(nil, c.String("key"))
			if err != nil {
				return err
			}
			return env.withSession(c.Context, func(ctx context.Context, sess *agent.Session) error {
				sig, err := sess.Sign(ctx, pub.Blob(), data, 0)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, base64.StdEncoding.EncodeToString(sig))
				return nil
			})
		},
	}
}

func signData(c *cli.Context) ([]byte, error) {
	literal := c.IsSet("data")
	fromFile := c.IsSet("in")
	switch {
	case literal && fromFile:
		return nil, fmt.Errorf("sign takes --data or --in, not both")
	case literal:
		return []byte(c.String("data")), nil
	case fromFile:
		data, err := os.ReadFile(c.String("in"))
		if err != nil {
			return nil, fmt.Errorf("read sign input: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("sign needs --data or --in")
	}
}

func lockCommand() *cli.Command {
	return &cli.Command{
		Name:  "lock",
		Usage: "lock the agent with a passphrase",
		Action: func(c *cli.Context) error {
			env, err := setup(c)
			if err != nil {
				return err
			}
			pass, err := promptPassphrase("Enter lock passphrase: ")
			if err != nil {
				return err
			}
			again, err := promptPassphrase("Again: ")
			if err != nil {
				return err
			}
			if !bytes.Equal(pass, again) {
				return fmt.Errorf("passphrases do not match")
			}
			return env.withSession(c.Context, func(ctx context.Context, sess *agent.Session) error {
				if err := sess.Lock(ctx, pass); err != nil {
					return err
				}
				env.log.Info().Msg("agent locked")
				return nil
			})
		},
	}
}

func unlockCommand() *cli.Command {
	return &cli.Command{
		Name:  "unlock",
		Usage: "unlock the agent",
		Action: func(c *cli.Context) error {
			env, err := setup(c)
			if err != nil {
				return err
			}
			pass, err := promptPassphrase("Enter unlock passphrase: ")
			if err != nil {
				return err
			}
			return env.withSession(c.Context, func(ctx context.Context, sess *agent.Session) error {
				if err := sess.Unlock(ctx, pass); err != nil {
					return err
				}
				env.log.Info().Msg("agent unlocked")
				return nil
			})
		},
	}
}

// loadPrivateKey loads path, prompting for a passphrase when the key
// turns out to be encrypted.
func loadPrivateKey(path string) (*keyfile.Key, error) {
	key, err := keyfile.LoadPrivate(nil, path, nil)
	if err == nil {
		return key, nil
	}
	if !keyfile.IsPassphraseMissing(err) {
		return nil, err
	}
	pass, err := promptPassphrase(fmt.Sprintf("Enter passphrase for %s: ", path))
	if err != nil {
		return nil, err
	}
	return keyfile.LoadPrivate(nil, path, pass)
}

func promptPassphrase(prompt string) ([]byte, error) {
	pass, err := gopass.GetPasswdPrompt(prompt, true, os.Stdin, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	return pass, nil
}
