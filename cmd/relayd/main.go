// Command relayd is the relay's entrypoint: it wires config, logging,
// storage backend selection, relay identity, the core engine, and the
// websocket transport, then waits for SIGINT/SIGTERM. Grounded in the
// teacher's services/server/main.go: same private-key load-or-generate
// pattern (there, a libp2p identity; here, the relay's own NIP-11 keypair,
// where a generated key is logged for the operator to copy into config,
// not written anywhere) and the same signal-driven graceful shutdown shape.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/portwatch/nostrelay/lib/config"
	"github.com/portwatch/nostrelay/lib/identity"
	"github.com/portwatch/nostrelay/lib/logging"
	"github.com/portwatch/nostrelay/lib/relay"
	"github.com/portwatch/nostrelay/lib/storage"
	"github.com/portwatch/nostrelay/lib/storage/boltstore"
	"github.com/portwatch/nostrelay/lib/storage/sqlitestore"
	"github.com/portwatch/nostrelay/lib/transport/wsrelay"
)

func main() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logging.Init(cfg.Logging.Level, cfg.Logging.Output, cfg.Logging.Path); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logging.Fatalf("create data dir: %v", err)
	}

	id, err := relayIdentity(cfg.Relay.Nsec)
	if err != nil {
		logging.Fatalf("relay identity: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		logging.Fatalf("open storage: %v", err)
	}
	defer store.Close()

	engine := relay.NewEngine(store)

	info := wsrelay.RelayInfo{
		Name:          cfg.Relay.Name,
		Description:   cfg.Relay.Description,
		Pubkey:        id.PubKeyHex(),
		Contact:       cfg.Relay.Contact,
		SupportedNIPs: cfg.Relay.SupportedNIPs,
		Software:      cfg.Relay.Software,
		Version:       cfg.Relay.Version,
	}

	app := wsrelay.New(engine, info)

	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		logging.Infof("listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			logging.Fatalf("listen: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logging.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		logging.Errorf("shutdown: %v", err)
	}
	os.Exit(0)
}

// relayIdentity loads the relay's keypair from config if an nsec is set,
// otherwise generates one and logs it so the operator can persist it.
func relayIdentity(nsec string) (*identity.Identity, error) {
	if nsec != "" {
		return identity.LoadNsec(nsec)
	}

	id, err := identity.Generate()
	if err != nil {
		return nil, err
	}
	generated, err := id.Nsec()
	if err != nil {
		return nil, err
	}
	logging.Warnf("no relay.nsec configured, generated one: %s (copy this into config.yaml to persist)", generated)
	return id, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return sqlitestore.Open(cfg.DataDir)
	case "bbolt", "":
		return boltstore.Open(cfg.DataDir + "/relay.db")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
