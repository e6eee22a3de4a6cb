// Command textproofd runs the correction pipeline's HTTP service: load
// configuration, open the durable store, and serve until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/weimengliu/textproof/internal/adaptercache"
	"github.com/weimengliu/textproof/internal/catalog"
	"github.com/weimengliu/textproof/internal/config"
	"github.com/weimengliu/textproof/internal/httpapi"
	"github.com/weimengliu/textproof/internal/precorrector"
	"github.com/weimengliu/textproof/internal/prompt"
	"github.com/weimengliu/textproof/internal/store"
	"github.com/weimengliu/textproof/internal/task"
)

func main() {
	os.Exit(run())
}

func run() int {
	host := flag.String("host", "0.0.0.0", "listen host")
	port := flag.Int("port", 8000, "listen port")
	dataDir := flag.String("data-dir", "./data", "directory for the SQLite store and legacy migration file")
	envFile := flag.String("env-file", ".env", "dotfile path for runtime-mutable settings")
	generalPrompt := flag.String("general-prompt-file", "", "path to an override general correction prompt")
	ollamaPrompt := flag.String("ollama-prompt-file", "", "path to an override Ollama correction prompt")
	dev := flag.Bool("dev", false, "enable debug-level logging")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *dev {
		log.SetLevel(logrus.DebugLevel)
	}

	// ownedByServer flips to true once the server takes over draining
	// these through OnShutdown below; until then, an early init failure
	// cleans up whatever already opened rather than leaking it.
	ownedByServer := false

	cfgStore, err := config.NewStore(*envFile, log)
	if err != nil {
		log.WithError(err).Error("textproofd: failed to load configuration")
		return 1
	}
	defer func() {
		if !ownedByServer {
			cfgStore.Close()
		}
	}()
	if err := cfgStore.WatchFile(); err != nil {
		log.WithError(err).Warn("textproofd: dotfile watch disabled")
	}

	promptMgr, err := prompt.NewManager(*generalPrompt, *ollamaPrompt)
	if err != nil {
		log.WithError(err).Error("textproofd: failed to load prompts")
		return 1
	}
	defer func() {
		if !ownedByServer {
			promptMgr.Close()
		}
	}()

	st, err := store.Open(*dataDir, log)
	if err != nil {
		log.WithError(err).Error("textproofd: failed to open durable store")
		return 1
	}
	defer func() {
		if !ownedByServer {
			st.Close()
		}
	}()

	tasks := task.NewManager(st, log)
	defer func() {
		if !ownedByServer {
			tasks.Stop()
		}
	}()

	cache, err := adaptercache.New(0, cfgStore, log)
	if err != nil {
		log.WithError(err).Error("textproofd: failed to build adapter cache")
		return 1
	}

	cat, err := catalog.Load(nil)
	if err != nil {
		log.WithError(err).Error("textproofd: failed to load provider catalog")
		return 1
	}

	app := httpapi.NewApp(cfgStore, promptMgr, cache, tasks, cat, precorrector.Noop{}, log)
	router := app.Router(nil)
	srv := httpapi.NewServer(router, httpapi.Option{Host: *host, Port: *port}, log)

	// Releasing these happens as part of the server's own lifecycle:
	// stop the task manager's cleanup cron before closing the store,
	// then release the prompt and config watchers. Worker goroutines
	// still running a task are not waited for.
	srv.OnShutdown(tasks.Stop)
	srv.OnShutdown(func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("textproofd: store close failed")
		}
	})
	srv.OnShutdown(func() {
		if err := promptMgr.Close(); err != nil {
			log.WithError(err).Warn("textproofd: prompt manager close failed")
		}
	})
	srv.OnShutdown(func() {
		if err := cfgStore.Close(); err != nil {
			log.WithError(err).Warn("textproofd: config store close failed")
		}
	})
	ownedByServer = true

	color.New(color.FgGreen, color.Bold).Printf("textproofd")
	fmt.Printf(" listening on %s:%d (data: %s, config: %s)\n", *host, *port, *dataDir, *envFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("textproofd: shutting down")
		if err := srv.Stop(); err != nil {
			log.WithError(err).Warn("textproofd: stop signal failed")
		}
		<-errCh
		return 0
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("textproofd: server exited with error")
			return 1
		}
		return 0
	}
}
