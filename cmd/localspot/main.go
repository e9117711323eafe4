// Command localspot is a small demo client: it restores or establishes a
// session against a LocalSpot backend, lists businesses through the cache,
// and reports the offline queue state.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/localspot/localspot-go/api"
	"github.com/localspot/localspot-go/apierror"
	"github.com/localspot/localspot-go/cache"
	"github.com/localspot/localspot-go/client"
	"github.com/localspot/localspot-go/connectivity"
	"github.com/localspot/localspot-go/internal/config"
	"github.com/localspot/localspot-go/offline"
	"github.com/localspot/localspot-go/session"
	"github.com/localspot/localspot-go/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "localspot: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	displayAppname("LocalSpot")

	cfg, err := config.New()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	secureStore, err := store.OpenFile(cfg.Store.Path, cfg.Store.Passphrase, store.KDFParams{
		Time:   cfg.Store.KDF.Time,
		MemKiB: cfg.Store.KDF.MemKiB,
		Par:    cfg.Store.KDF.Par,
	}, store.WithLogger(log))
	if err != nil {
		return err
	}

	monitor := connectivity.NewMonitor(connectivity.WithLogger(log))
	queue := offline.NewQueue(secureStore, offline.WithQueueLogger(log))

	httpClient := client.New(cfg.API.BaseURL, cfg.API.Timeout,
		client.WithLogger(log),
		client.WithOfflineQueue(queue, monitor),
	)

	manager := session.NewManager(httpClient, secureStore,
		session.WithLogger(log),
		session.WithRefreshLead(cfg.Auth.RefreshLead),
	)
	httpClient.SetTokenSource(manager)
	manager.OnForcedLogout(func() {
		log.Warn().Msg("session expired, please log in again")
	})

	replayCancel := offline.NewReplayer(queue, httpClient, offline.WithReplayerLogger(log)).Attach(monitor)
	defer replayCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	go monitor.Probe(ctx, cfg.API.BaseURL+"/health", 10*time.Second)

	if err := manager.Restore(ctx); err != nil {
		return err
	}
	if !manager.IsAuthenticated() {
		email := os.Getenv("LOCALSPOT_DEMO_EMAIL")
		password := os.Getenv("LOCALSPOT_DEMO_PASSWORD")
		if email == "" || password == "" {
			return fmt.Errorf("no stored session; set LOCALSPOT_DEMO_EMAIL and LOCALSPOT_DEMO_PASSWORD")
		}
		if err := manager.Login(ctx, email, password); err != nil {
			return fmt.Errorf("%s", apierror.Humanize(err))
		}
	}
	if user := manager.CurrentUser(); user != nil {
		log.Info().Str("user", user.Name).Msg("signed in")
	}

	businessCache := cache.New(secureStore, cache.WithLogger(log))
	businesses, err := api.FetchBusinessesCached(ctx, httpClient, businessCache, cfg.Cache.DefaultTTL)
	if err != nil {
		return fmt.Errorf("%s", apierror.Humanize(err))
	}
	for _, b := range businesses {
		fmt.Printf("%-24s %-10s %.1f\n", b.Name, b.Category, b.Rating)
	}

	if pending := queue.PendingCount(ctx); pending > 0 {
		fmt.Printf("\n%d mutation(s) waiting for connectivity\n", pending)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
