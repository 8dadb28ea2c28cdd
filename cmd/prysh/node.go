// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/bureau-foundation/pry/bridge"
	"github.com/bureau-foundation/pry/driver"
	"github.com/bureau-foundation/pry/lib/config"
	"github.com/bureau-foundation/pry/lib/netutil"
	"github.com/bureau-foundation/pry/lib/nodekey"
	"github.com/bureau-foundation/pry/lib/secret"
	"github.com/bureau-foundation/pry/lib/version"
	"github.com/bureau-foundation/pry/pry"
	"github.com/bureau-foundation/pry/render"
	"github.com/bureau-foundation/pry/repl"
	"github.com/bureau-foundation/pry/session"
	"github.com/bureau-foundation/pry/settings"
	"github.com/bureau-foundation/pry/transport"
)

// passphraseEnv holds the passphrase for a sealed node key.
const passphraseEnv = "PRY_KEY_PASSPHRASE"

// PassphraseFunc supplies the passphrase for a sealed key file. It is
// only called when the key is sealed.
type PassphraseFunc func(path string) (*secret.Buffer, error)

// node is everything one prysh process runs: the shared stores, the
// take-over broker and, when the node has a key, the bridge endpoints.
type node struct {
	config    *config.Config
	logger    *slog.Logger
	settings  *settings.Store
	registry  *session.Registry
	broker    *pry.Broker
	evaluator *repl.BindingEvaluator

	// identity, dialer and host are nil on a node without a key file.
	identity *transport.Identity
	dialer   *bridge.Dialer
	host     *bridge.Host
}

// loadConfig resolves, validates and prepares the configuration named
// by flagPath or PRY_CONFIG.
func loadConfig(flagPath string) (*config.Config, error) {
	cfg, err := config.Resolve(flagPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openNode assembles a node from a configuration returned by
// loadConfig.
func openNode(cfg *config.Config, logger *slog.Logger, passphrase PassphraseFunc) (*node, error) {
	store, err := settings.New(cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("configuration settings: %w", err)
	}

	broker := pry.NewBroker(pry.BrokerOptions{Logger: logger})
	n := &node{
		config:    cfg,
		logger:    logger,
		settings:  store,
		registry:  session.NewRegistry(logger),
		broker:    broker,
		evaluator: &repl.BindingEvaluator{Broker: broker, PryTimeout: cfg.PryTimeout()},
	}

	identity, err := loadIdentity(cfg, passphrase)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		logger.Info("no node key; remote sessions are disabled", "key_file", cfg.Node.KeyFile)
		return n, nil
	}
	n.identity = identity

	catalog, err := driver.NewCatalog(version.DriverVersion(), repl.Commands())
	if err != nil {
		n.close()
		return nil, err
	}
	n.dialer = &bridge.Dialer{
		Identity:  *identity,
		Directory: directoryOf(cfg),
		Transport: &transport.TCPDialer{Timeout: cfg.ConnectTimeout()},
		Catalog:   catalog,
		Timeout:   cfg.ConnectTimeout(),
		Logger:    logger,
	}

	if cfg.Node.Listen != "" {
		units, err := driver.NewStore(driver.StoreOptions{
			Accept: []string{driver.Remsh, driver.Complete},
			Dir:    cfg.Paths.Units,
			Logger: logger,
		})
		if err != nil {
			n.close()
			return nil, err
		}
		// Remote operators get their own evaluator: pry() from a bridged
		// session would suspend a connection handler, not a worker.
		n.host = bridge.NewHost(bridge.HostOptions{
			Identity:  *identity,
			Store:     units,
			Settings:  store,
			Registry:  n.registry,
			Evaluator: &repl.BindingEvaluator{},
			Formatter: render.New(os.Stdout),
			Logger:    logger,
		})
	}
	return n, nil
}

// loadIdentity reads the node key and keyring. A missing key file is
// not an error: the node runs without bridging. passphrase is asked
// only when the key turns out to be sealed or encrypted.
func loadIdentity(cfg *config.Config, passphrase PassphraseFunc) (*transport.Identity, error) {
	key, err := nodekey.Load(cfg.Node.KeyFile, nil)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if errors.Is(err, nodekey.ErrPassphraseRequired) {
		if passphrase == nil {
			return nil, fmt.Errorf("%s is sealed and no passphrase source is available", cfg.Node.KeyFile)
		}
		phrase, phraseErr := passphrase(cfg.Node.KeyFile)
		if phraseErr != nil {
			return nil, phraseErr
		}
		key, err = nodekey.Load(cfg.Node.KeyFile, phrase)
		phrase.Close()
	}
	if err != nil {
		return nil, err
	}

	keyring, err := transport.LoadKeyring(cfg.Node.Keyring)
	if err != nil {
		key.Close()
		return nil, err
	}
	return &transport.Identity{ID: cfg.Node.ID, Key: key, Keyring: keyring}, nil
}

func directoryOf(cfg *config.Config) *transport.Directory {
	addresses := make(map[string]string, len(cfg.Peers))
	for id, peer := range cfg.Peers {
		addresses[id] = peer.Address
	}
	return transport.NewDirectory(addresses)
}

// nodeID is the id shown in prompts: empty for a node that cannot
// bridge, so its prompts stay in the plain form.
func (n *node) nodeID() string {
	if n.identity == nil {
		return ""
	}
	return n.identity.ID
}

// peers lists configured peers that are also trusted.
func (n *node) peers() []string {
	if n.identity == nil {
		return nil
	}
	var ids []string
	for _, id := range n.config.PeerIDs() {
		if n.identity.Keyring.IsTrusted(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// serve accepts bridges on node.listen until ctx is cancelled. It
// returns at once when the node does not listen.
func (n *node) serve(ctx context.Context) error {
	if n.host == nil {
		return nil
	}
	listener, err := transport.NewTCPListener(n.config.Node.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", n.config.Node.Listen, err)
	}
	n.logger.Info("accepting remote sessions", "address", listener.Address(), "node", n.identity.ID)
	if err := n.host.Serve(ctx, listener); err != nil && !netutil.IsExpectedCloseError(err) {
		return err
	}
	return nil
}

func (n *node) close() {
	if n.identity != nil {
		n.identity.Key.Close()
	}
}

// envPassphrase reads the passphrase from PRY_KEY_PASSPHRASE, falling
// back to prompt when it is unset.
func envPassphrase(prompt PassphraseFunc) PassphraseFunc {
	return func(path string) (*secret.Buffer, error) {
		phrase, ok, err := secret.FromEnv(passphraseEnv)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", passphraseEnv, err)
		}
		if ok {
			return phrase, nil
		}
		if prompt == nil {
			return nil, fmt.Errorf("%s is sealed; set %s", path, passphraseEnv)
		}
		return prompt(path)
	}
}
