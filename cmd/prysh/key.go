// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pry/cmd/prysh/cli"
	"github.com/bureau-foundation/pry/lib/config"
	"github.com/bureau-foundation/pry/lib/nodekey"
	"github.com/bureau-foundation/pry/lib/secret"
	"github.com/bureau-foundation/pry/transport"
)

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:    "key",
		Summary: "Manage the node key and the trusted peer keyring",
		Description: `Manage the node's Ed25519 key and its keyring.

A node needs a key to open or accept remote sessions. Two nodes bridge
only when each lists the other in its keyring, an authorized_keys file
whose comments are peer ids.`,
		Subcommands: []*cli.Command{keyGenerateCommand(), keyShowCommand(), keyTrustCommand()},
	}
}

func keyGenerateCommand() *cli.Command {
	var (
		common commonFlags
		seal   bool
		force  bool
	)
	return &cli.Command{
		Name:    "generate",
		Summary: "Generate the node key",
		Examples: []cli.Example{
			{Description: "Generate a key sealed with a passphrase", Command: "prysh key generate --seal"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("generate", pflag.ContinueOnError)
			common.bind(flagSet)
			flagSet.BoolVar(&seal, "seal", false, "encrypt the key with a passphrase ($"+passphraseEnv+" or prompt)")
			flagSet.BoolVar(&force, "force", false, "replace an existing key")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := loadConfig(common.config)
			if err != nil {
				return err
			}
			var phrase *secret.Buffer
			if seal {
				phrase, err = envPassphrase(confirmPassphrase)(cfg.Node.KeyFile)
				if err != nil {
					return err
				}
				defer phrase.Close()
			}
			line, err := generateKey(cfg, phrase, force)
			if err != nil {
				return err
			}
			cli.NewCommandLogger(common.verbose).Info("node key written", "path", cfg.Node.KeyFile, "sealed", seal)
			fmt.Println(line)
			return nil
		},
	}
}

// generateKey writes a fresh node key and returns its authorized_keys
// line for peers to trust.
func generateKey(cfg *config.Config, passphrase *secret.Buffer, force bool) (string, error) {
	if _, err := os.Stat(cfg.Node.KeyFile); err == nil && !force {
		return "", fmt.Errorf("%s already exists; use --force to replace it", cfg.Node.KeyFile)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Node.KeyFile), 0o700); err != nil {
		return "", err
	}

	key, err := nodekey.Generate()
	if err != nil {
		return "", err
	}
	defer key.Close()
	if err := key.Save(cfg.Node.KeyFile, cfg.Node.ID, passphrase); err != nil {
		return "", err
	}
	return nodekey.AuthorizedKey(key.Public(), cfg.Node.ID)
}

// confirmPassphrase prompts twice for a new passphrase.
func confirmPassphrase(path string) (*secret.Buffer, error) {
	first, err := promptPassphrase("new passphrase for " + path)
	if err != nil {
		return nil, err
	}
	second, err := promptPassphrase("repeat passphrase")
	if err != nil {
		first.Close()
		return nil, err
	}
	defer second.Close()
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		first.Close()
		return nil, errors.New("passphrases do not match")
	}
	return first, nil
}

func keyShowCommand() *cli.Command {
	var common commonFlags
	return &cli.Command{
		Name:    "show",
		Summary: "Print this node's authorized_keys line",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			common.bind(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := loadConfig(common.config)
			if err != nil {
				return err
			}
			identity, err := loadIdentity(cfg, envPassphrase(func(path string) (*secret.Buffer, error) {
				return promptPassphrase("passphrase for " + path)
			}))
			if err != nil {
				return err
			}
			if identity == nil {
				return fmt.Errorf("no node key at %s; run 'prysh key generate'", cfg.Node.KeyFile)
			}
			defer identity.Key.Close()
			line, err := nodekey.AuthorizedKey(identity.Key.Public(), identity.ID)
			if err != nil {
				return err
			}
			fmt.Println(line)
			return nil
		},
	}
}

func keyTrustCommand() *cli.Command {
	var common commonFlags
	return &cli.Command{
		Name:    "trust",
		Summary: "Add a peer's authorized_keys line to the keyring",
		Usage:   "prysh key trust [flags] < peer.pub",
		Description: `Read one authorized_keys line from stdin (as printed by 'prysh key
show' on the peer) and add it to the keyring. The line's comment names
the peer.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("trust", pflag.ContinueOnError)
			common.bind(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := loadConfig(common.config)
			if err != nil {
				return err
			}
			peerID, err := trustPeer(cfg, os.Stdin)
			if err != nil {
				return err
			}
			cli.NewCommandLogger(common.verbose).Info("peer trusted", "peer", peerID, "keyring", cfg.Node.Keyring)
			return nil
		},
	}
}

// trustPeer appends the authorized_keys line read from r to the
// keyring and returns the peer id it names.
func trustPeer(cfg *config.Config, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 16*1024))
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(data))
	_, peerID, err := nodekey.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return "", err
	}
	switch {
	case peerID == "":
		return "", errors.New("the key line has no peer id comment")
	case peerID == cfg.Node.ID:
		return "", fmt.Errorf("%s is this node", peerID)
	}

	keyring, err := transport.LoadKeyring(cfg.Node.Keyring)
	if err != nil {
		return "", err
	}
	if keyring.IsTrusted(peerID) {
		return "", fmt.Errorf("%s is already in %s", peerID, cfg.Node.Keyring)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Node.Keyring), 0o700); err != nil {
		return "", err
	}
	file, err := os.OpenFile(cfg.Node.Keyring, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := fmt.Fprintln(file, line); err != nil {
		file.Close()
		return "", err
	}
	return peerID, file.Close()
}
