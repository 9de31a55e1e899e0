// Command verifier runs a presentation verification service backed by a
// remote DID resolver.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/pilacorp/go-did-credential/did/config"
	"github.com/pilacorp/go-did-credential/did/resolver"
	"github.com/pilacorp/go-did-credential/verifier/challenge"
	"github.com/pilacorp/go-did-credential/verifier/server"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	flag.Parse()

	cfg := config.New(config.Config{})
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			log.WithError(err).WithField("path", *configPath).Fatal("load config")
		}
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.JSONFormatter{})

	remote, err := resolver.NewHTTP(cfg.ResolverURL, resolver.WithTimeout(cfg.ResolverTimeout))
	if err != nil {
		log.WithError(err).Fatal("create resolver")
	}
	cached := resolver.NewCached(remote, cfg.CacheTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := challenge.NewPool(cfg.ChallengeTTL)
	go pool.Run(ctx, cfg.ChallengeTTL)

	log.WithFields(log.Fields{
		"resolver": cfg.ResolverURL,
		"method":   cfg.Method,
		"cacheTtl": cfg.CacheTTL.String(),
	}).Info("starting verifier")

	if err := server.New(cached, pool, server.WithMethod(cfg.Method)).Run(ctx, cfg.ListenAddr); err != nil {
		log.WithError(err).Fatal("verifier stopped")
	}
}
