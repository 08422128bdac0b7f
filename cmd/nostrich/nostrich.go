// SPDX-License-Identifier: ice License 1.0

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gookit/goutil/errorx"
	"github.com/spf13/cobra"

	"github.com/nostrich-app/nostrich/cfg"
	"github.com/nostrich-app/nostrich/database/cache"
	"github.com/nostrich-app/nostrich/dispatch"
	"github.com/nostrich-app/nostrich/model"
	"github.com/nostrich-app/nostrich/relay"
	"github.com/nostrich-app/nostrich/resolver"
)

var (
	identity   string
	configPath string
	dbPath     string
	req        string
	relayURLs  []string
	nostrich   = &cobra.Command{
		Use:   "nostrich",
		Short: "nostrich ingests nostr events from a set of relays into a local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg.MustInit(configPath)
			cache.MustInit(dbPath)

			dispatcher := dispatch.New(identity, resolver.New(cfg.MustGet[resolver.Config]()))
			dispatcher.RegisterNotificationListener(func(eventID string, kind model.Kind) {
				log.Printf("notification: event %v (kind %v)", eventID, kind)
			})
			pool := relay.NewPool(cfg.MustGet[relay.Config](), dispatcher, logNotifier{})
			defer pool.Close()

			for _, url := range relayURLs {
				if err := pool.AddRelay(ctx, url, relay.Attributes{Active: true, GlobalFeed: true}); err != nil {
					return errorx.Withf(err, "failed to pool.AddRelay(%v)", url)
				}
			}
			if err := pool.ConnectAll(ctx, identity); err != nil {
				return errorx.Withf(err, "failed to pool.ConnectAll(%v)", identity)
			}
			if req != "" {
				pool.SendAll(ctx, req, false)
			}

			<-ctx.Done()

			return nil
		},
	}
	initFlags = func() {
		nostrich.Flags().StringVar(&identity, "identity", "", "hex pubkey of the local user")
		nostrich.Flags().StringVar(&configPath, "config", "", "path to the yaml configuration file")
		nostrich.Flags().StringVar(&dbPath, "db", ":memory:", "path to the sqlite cache database")
		nostrich.Flags().StringSliceVar(&relayURLs, "relay", nil, "relay websocket url to ingest from (repeatable)")
		nostrich.Flags().StringVar(&req, "req", "", "raw REQ message to broadcast once connected")
		nostrich.MarkFlagRequired("identity")
	}
)

type logNotifier struct{}

func (logNotifier) EventReceived(relayURL, eventID string) {
	log.Printf("event %v received from %v", eventID, relayURL)
}

func (logNotifier) PublishConfirmed(relayURL, eventID string, ok bool, reason string) {
	log.Printf("publish of %v confirmed by %v: ok=%v reason=%q", eventID, relayURL, ok, reason)
}

func (logNotifier) AuthChallenge(relayURL, challenge string) {
	log.Printf("auth challenge from %v: %v", relayURL, challenge)
}

func (logNotifier) PayRequest(relayURL, invoice, description, url string) {
	log.Printf("payment request from %v: %v (%v) %v", relayURL, invoice, description, url)
}

func init() {
	initFlags()
}

func main() {
	if err := nostrich.Execute(); err != nil {
		log.Panic(err)
	}
}
