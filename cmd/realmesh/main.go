// realmesh is the node binary: it runs the synchronization engine and offers
// the realm lifecycle operations (create, invite, join) for its state dir.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/config"
	"github.com/realmesh/go-realmesh/engine"
	"github.com/realmesh/go-realmesh/gossip"
	"github.com/realmesh/go-realmesh/invite"
	"github.com/realmesh/go-realmesh/peers"
	"github.com/realmesh/go-realmesh/pubsub"
	"github.com/realmesh/go-realmesh/realm"
	"github.com/realmesh/go-realmesh/reconnect"
	"github.com/realmesh/go-realmesh/signing"
	"github.com/realmesh/go-realmesh/store"
)

const keyFileName = "node.key"

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "realmesh",
		Short:         "peer-to-peer realm synchronization node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to the config file")
	cmd.PersistentFlags().String("data-dir", "", "override the data directory")
	cmd.PersistentFlags().String("log-level", "", "override the log level")
	cmd.AddCommand(runCmd(), createCmd(), inviteCmd(), joinCmd(), listCmd())
	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile, viper.New())
	if err != nil {
		return cfg, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

// openSigner loads the node identity, creating one on first use.
func openSigner(dataDir string) (*signing.EdSigner, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	keyFile := filepath.Join(dataDir, keyFileName)
	if _, err := os.Stat(keyFile); errors.Is(err, os.ErrNotExist) {
		return signing.NewEdSigner(signing.ToFile(keyFile))
	}
	return signing.NewEdSigner(signing.FromFile(keyFile))
}

func openStore(dataDir string) (*store.FileStore, error) {
	return store.OpenFile(filepath.Join(dataDir, "state"))
}

func parseRealmID(s string) (types.RealmID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != types.RealmIDSize {
		return types.EmptyRealmID, fmt.Errorf("invalid realm id %q", s)
	}
	var id types.RealmID
	copy(id[:], raw)
	return id, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the node until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			signer, err := openSigner(cfg.DataDir)
			if err != nil {
				return err
			}
			verifier, err := signing.NewEdVerifier()
			if err != nil {
				return err
			}
			db, err := openStore(cfg.DataDir)
			if err != nil {
				return err
			}
			host, err := pubsub.NewHost(cfg.Host, signer)
			if err != nil {
				return err
			}
			defer host.Close()
			ps, err := pubsub.New(ctx, logger.Named("pubsub"), host, cfg.PubSub)
			if err != nil {
				return err
			}

			registry := peers.New(logger.Named("peers"),
				peers.WithRetryPolicy(cfg.Reconnect.Delay),
			)
			driver := reconnect.New(logger.Named("reconnect"), cfg.Reconnect, registry,
				pubsub.NewHostConnector(logger.Named("connector"), host),
			)

			advertised := cfg.AdvertiseAddresses
			if len(advertised) == 0 {
				for _, addr := range host.Addrs() {
					advertised = append(advertised, addr.String())
				}
			}
			engines := func(id types.RealmID) (gossip.Engine, error) {
				return engine.New(filepath.Join(cfg.DataDir, "engine"), id)
			}
			manager := realm.New(
				logger.Named("realm"),
				cfg.Realm,
				signer,
				verifier,
				registry,
				db,
				ps,
				engines,
				realm.WithAdvertisedAddresses(advertised),
			)
			if err := manager.Start(); err != nil {
				return err
			}
			driver.Start()

			var metricsSrv *http.Server
			if cfg.MetricsListen != "" {
				metricsSrv = &http.Server{Addr: cfg.MetricsListen, Handler: promhttp.Handler()}
				go func() {
					if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
						logger.Warn("metrics server stopped", zap.Error(err))
					}
				}()
			}

			logger.Info("node started",
				zap.String("node", signer.NodeID().ShortString()),
				zap.String("data_dir", cfg.DataDir),
				zap.Strings("listen", cfg.Host.Listen),
			)
			<-ctx.Done()

			logger.Info("shutting down")
			if metricsSrv != nil {
				shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
				metricsSrv.Shutdown(shutdownCtx)
				stop()
			}
			driver.Stop()
			manager.Stop()
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "create a new realm in the local state dir",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openStore(cfg.DataDir)
			if err != nil {
				return err
			}
			id, err := types.GenerateRealmID()
			if err != nil {
				return err
			}
			key, err := types.GenerateRealmKey()
			if err != nil {
				return err
			}
			rec := store.RealmRecord{ID: id, Name: name, Key: key, Topic: id.TopicID()}
			if err := db.SaveRealm(rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "realm %s created\nid: %s\ntopic: %s\n",
				name, id, id.TopicID())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name of the realm")
	cmd.MarkFlagRequired("name")
	return cmd
}

func inviteCmd() *cobra.Command {
	var (
		realmHex string
		maxUses  uint32
		expiry   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "mint an invite ticket for a realm",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(cfg.AdvertiseAddresses) == 0 {
				return errors.New("minting an invite requires advertise-addresses in the config")
			}
			id, err := parseRealmID(realmHex)
			if err != nil {
				return err
			}
			db, err := openStore(cfg.DataDir)
			if err != nil {
				return err
			}
			rec, ok, err := db.Realm(id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("realm %s is not in the local state dir", realmHex)
			}
			signer, err := openSigner(cfg.DataDir)
			if err != nil {
				return err
			}
			ticket, err := invite.Create(signer, time.Now(), invite.Params{
				Realm:     rec.ID,
				Key:       rec.Key,
				RealmName: rec.Name,
				Bootstrap: []invite.Peer{{ID: signer.NodeID(), Addresses: cfg.AdvertiseAddresses}},
				ExpiresIn: expiry,
				MaxUses:   maxUses,
			})
			if err != nil {
				return err
			}
			encoded, err := ticket.Encode()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}
	cmd.Flags().StringVar(&realmHex, "realm", "", "realm id in hex")
	cmd.Flags().Uint32Var(&maxUses, "max-uses", 0, "how many joins the ticket admits, 0 for unlimited")
	cmd.Flags().DurationVar(&expiry, "expiry", 7*24*time.Hour, "ticket lifetime, 0 for no expiry")
	cmd.MarkFlagRequired("realm")
	return cmd
}

func joinCmd() *cobra.Command {
	var encoded string
	cmd := &cobra.Command{
		Use:   "join",
		Short: "join a realm from an invite ticket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openStore(cfg.DataDir)
			if err != nil {
				return err
			}
			verifier, err := signing.NewEdVerifier()
			if err != nil {
				return err
			}
			ticket, err := invite.Decode(encoded)
			if err != nil {
				return err
			}
			uses, err := db.InviteUses(ticket.InviteID)
			if err != nil {
				return err
			}
			if err := ticket.Verify(verifier, time.Now(), uses); err != nil {
				return err
			}
			if ticket.Topic != ticket.Realm.TopicID() {
				return realm.ErrTopicMismatch
			}
			signer, err := openSigner(cfg.DataDir)
			if err != nil {
				return err
			}
			if _, err := db.BumpInviteUses(ticket.InviteID); err != nil {
				return err
			}
			rec := store.RealmRecord{
				ID:    ticket.Realm,
				Name:  ticket.RealmName,
				Key:   ticket.Key,
				Topic: ticket.Topic,
			}
			if err := db.SaveRealm(rec); err != nil {
				return err
			}
			recs, err := db.Peers()
			if err != nil {
				return err
			}
			index := make(map[types.NodeID]int, len(recs))
			for i := range recs {
				index[recs[i].ID] = i
			}
			for i := range ticket.Bootstrap {
				peer := &ticket.Bootstrap[i]
				if peer.ID == signer.NodeID() {
					continue
				}
				info := peer.Info()
				info.SharedRealms = []types.RealmID{ticket.Realm}
				fresh := store.PeerRecordFromInfo(info)
				if at, known := index[fresh.ID]; known {
					recs[at] = mergePeerRecords(recs[at], fresh)
					continue
				}
				index[fresh.ID] = len(recs)
				recs = append(recs, fresh)
			}
			if err := db.SavePeers(recs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "joined realm %s (%s); start syncing with 'realmesh run'\n",
				ticket.RealmName, ticket.Realm)
			return nil
		},
	}
	cmd.Flags().StringVar(&encoded, "ticket", "", "the invite ticket string")
	cmd.MarkFlagRequired("ticket")
	return cmd
}

// mergePeerRecords folds fresh bootstrap data into an existing record. The
// original source is kept; addresses and shared realms are unioned.
func mergePeerRecords(old, fresh store.PeerRecord) store.PeerRecord {
	addrs := map[string]struct{}{}
	for _, a := range old.Addresses {
		addrs[a] = struct{}{}
	}
	for _, a := range fresh.Addresses {
		if _, ok := addrs[a]; !ok {
			addrs[a] = struct{}{}
			old.Addresses = append(old.Addresses, a)
		}
	}
	realms := map[types.RealmID]struct{}{}
	for _, r := range old.SharedRealms {
		realms[r] = struct{}{}
	}
	for _, r := range fresh.SharedRealms {
		if _, ok := realms[r]; !ok {
			realms[r] = struct{}{}
			old.SharedRealms = append(old.SharedRealms, r)
		}
	}
	return old
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list realms in the local state dir",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openStore(cfg.DataDir)
			if err != nil {
				return err
			}
			recs, err := db.Realms()
			if err != nil {
				return err
			}
			for _, rec := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", rec.ID, rec.Name)
			}
			return nil
		},
	}
}
