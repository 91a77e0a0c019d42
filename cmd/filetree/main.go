package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/adapters"
	"github.com/brettbedarf/filetree/config"
	"github.com/brettbedarf/filetree/internal/output"
	"github.com/brettbedarf/filetree/internal/util"
	"github.com/brettbedarf/filetree/store"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		verbose    int
		statePath  string
		expandArg  string
		deleteArg  string
		watch      bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (.yaml, .yml, .json or .toml)")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.IntVar(&verbose, "verbose", 0, "Log verbosity level between 1 (error) and 5 (trace). Defaults to the config value (info).")
	flag.IntVar(&verbose, "v", 0, "--verbose (shorthand)")
	flag.StringVar(&statePath, "state", "", "Tree state file to restore on start and save on exit")
	flag.StringVar(&expandArg, "expand", "", "Comma separated containers to expand below the roots")
	flag.StringVar(&deleteArg, "delete", "", "Comma separated nodes to delete through the source")
	flag.BoolVar(&watch, "watch", false, "Keep running, re-rendering whenever a watched node changes")
	flag.BoolVar(&watch, "w", false, "--watch (shorthand)")
	flag.Parse()

	util.InitializeLogger(config.DefaultLogLvl, nil)
	logger := util.GetLogger("main")

	// Load config
	cfg := config.NewDefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(configPath); err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
	}
	if verbose > 0 {
		cfg.Merge(&config.ConfigOverride{LogLvl: &verbose})
	}
	if statePath != "" {
		cfg.StateFile = statePath
	}
	util.InitializeLogger(cfg.LogLvl, nil)
	logger = util.GetLogger("main")

	// Build the source
	registry := adapters.NewRegistry()
	adapters.RegisterBuiltins(registry)
	raw, err := cfg.SourceJSON()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to encode source config")
	}
	lister, err := registry.NewLister(raw)
	if err != nil {
		logger.Fatal().Err(err).RawJSON("source", raw).Msg("Failed to create lister")
	}

	opts := []store.Option{}
	if watch {
		opts = append(opts, store.WithWatcher(adapters.NewPollWatcher(lister, cfg.PollInterval)))
	}
	if deleter, ok := lister.(filetree.Deleter); ok {
		opts = append(opts, store.WithDeleter(deleter))
	}
	s := store.New(cfg, lister, opts...)
	defer s.Close()

	logger.Info().Str("config", configPath).Str("state", cfg.StateFile).Bool("watch", watch).Msg("filetree initializing")

	// Restore or mount roots
	if cfg.StateFile != "" {
		if err := s.LoadStateFile(cfg.StateFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("state", cfg.StateFile).Msg("Ignoring unusable state file")
		}
	}
	var roots []string
	for _, arg := range flag.Args() {
		key, err := toKey(lister, arg)
		if err != nil {
			logger.Fatal().Err(err).Str("root", arg).Msg("Invalid root")
		}
		roots = append(roots, key)
	}
	if len(roots) > 0 {
		s.Dispatch(store.SetRoots{Keys: roots})
	}
	if len(s.RootKeys()) == 0 {
		logger.Fatal().Msg("No roots specified; pass them as arguments or through -state")
	}
	for _, root := range s.RootKeys() {
		s.Dispatch(store.Expand{Root: root, Key: root})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	waitIdle(ctx, s, cfg)
	// nested expansions need their parents listed first
	for _, arg := range splitList(expandArg) {
		key, err := toKey(lister, arg)
		if err != nil {
			logger.Error().Err(err).Str("expand", arg).Msg("Invalid expand key")
			continue
		}
		expandPath(ctx, s, cfg, key)
	}

	if keys := splitList(deleteArg); len(keys) > 0 {
		deleteKeys(ctx, s, cfg, lister, keys)
	}

	render(os.Stdout, s)

	if watch {
		changes := make(chan struct{}, 1)
		h := s.Subscribe(func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		defer h.Dispose()
		logger.Info().Strs("roots", s.RootKeys()).Msg("Watching for changes")

	loop:
		for {
			select {
			case <-ctx.Done():
				logger.Info().Msg("Received signal, shutting down")
				break loop
			case <-changes:
				if s.IsIdle() {
					render(os.Stdout, s)
				}
			}
		}
	}

	if cfg.StateFile != "" {
		if err := s.SaveStateFile(cfg.StateFile); err != nil {
			logger.Error().Err(err).Str("state", cfg.StateFile).Msg("Failed to save state")
		} else {
			logger.Debug().Str("state", cfg.StateFile).Msg("Saved state")
		}
	}
}

// expandPath expands key and every container between it and its root
func expandPath(ctx context.Context, s *store.Store, cfg *config.Config, key string) {
	logger := util.GetLogger("main")
	root, ok := s.RootForKey(key)
	if !ok {
		logger.Warn().Str("key", key).Msg("Key is not below any root")
		return
	}
	var chain []string
	for k := key; len(k) >= len(root); k = filetree.ParentKey(k) {
		chain = append([]string{k}, chain...)
		if k == root {
			break
		}
	}
	for _, k := range chain {
		s.Dispatch(store.Expand{Root: root, Key: k})
		waitIdle(ctx, s, cfg)
	}
}

// deleteKeys deletes listed nodes. Their parents must already be listed,
// which is how leaves and containers are told apart.
func deleteKeys(ctx context.Context, s *store.Store, cfg *config.Config, lister filetree.Lister, args []string) {
	logger := util.GetLogger("main")
	selection := map[string][]string{}
	var keys []string
	for _, arg := range args {
		container, err := toKey(lister, arg)
		if err != nil {
			logger.Error().Err(err).Str("delete", arg).Msg("Invalid delete key")
			continue
		}
		key, root, ok := resolveListed(s, container)
		if !ok {
			logger.Warn().Str("delete", arg).Msg("Node is not listed; expand its parent first")
			continue
		}
		selection[root] = append(selection[root], key)
		keys = append(keys, key)
	}
	s.Dispatch(store.SetSelectionForest{Selection: selection})
	if !s.Dispatch(store.DeleteSelected{}) {
		return
	}
	// deletes complete asynchronously; wait for their listings to update
	done := make(chan struct{}, 1)
	h := s.Subscribe(func() {
		select {
		case done <- struct{}{}:
		default:
		}
	})
	defer h.Dispose()
	tctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()
	for !deleted(s, keys) {
		select {
		case <-tctx.Done():
			logger.Warn().Strs("keys", keys).Msg("Timed out waiting for deletes")
			return
		case <-done:
		}
	}
}

// resolveListed finds container, or its leaf form, in its parent's listing
func resolveListed(s *store.Store, container string) (key, root string, ok bool) {
	root, ok = s.RootForKey(container)
	if !ok || container == root {
		return "", "", false
	}
	leaf := strings.TrimSuffix(container, filetree.Separator)
	for _, child := range s.GetCachedChildKeys(root, filetree.ParentKey(container)) {
		if child == container || child == leaf {
			return child, root, true
		}
	}
	return "", "", false
}

func deleted(s *store.Store, keys []string) bool {
	for _, key := range keys {
		root, ok := s.RootForKey(key)
		if !ok {
			continue
		}
		parent := filetree.ParentKey(key)
		for _, child := range s.GetCachedChildKeys(root, parent) {
			if child == key {
				return false
			}
		}
	}
	return true
}

func waitIdle(ctx context.Context, s *store.Store, cfg *config.Config) {
	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}
	if err := s.WaitIdle(ctx); err != nil {
		logger := util.GetLogger("main")
		logger.Warn().Err(err).Msg("Gave up waiting for listings")
	}
}

func render(w io.Writer, s *store.Store) {
	for _, root := range s.RootKeys() {
		fmt.Fprint(w, output.RenderVisible(s.GetVisibleNodes(root)))
	}
}

// toKey converts a CLI argument into a container key. Local sources accept
// OS paths; other sources take keys verbatim.
func toKey(lister filetree.Lister, arg string) (string, error) {
	if local, ok := lister.(*adapters.LocalLister); ok {
		return local.Key(arg)
	}
	key := arg
	if !strings.HasPrefix(key, filetree.Separator) {
		key = filetree.Separator + key
	}
	if !strings.HasSuffix(key, filetree.Separator) {
		key += filetree.Separator
	}
	return key, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
