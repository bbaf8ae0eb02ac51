// treefs mounts a read-only filesystem whose directory tree comes from a
// remote (or local) JSON or YAML description and whose files are read from
// host paths named in that description.
//
// Usage:
//
//	treefs [flags] <mountpoint>
//	treefs --print-tree --source <location>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/internal/util"
)

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")
	logger.Info().
		Str("source", cfg.Source).
		Str("mnt", opts.mountPoint).
		Msg("treefs initializing")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	res, err := treefs.LoadTree(ctx, cfg, nil)
	if err != nil {
		logger.Fatal().Err(err).Str("source", cfg.Source).Msg("Failed to load description")
	}
	if len(res.Skipped) > 0 {
		logger.Warn().Int("skipped", len(res.Skipped)).Msg("Some description entries were skipped")
	}
	logger.Info().Int("nodes", res.Tree.Len()).Msg("Tree built")

	if opts.printTree {
		if err := res.Tree.Print(os.Stdout); err != nil {
			logger.Fatal().Err(err).Msg("Failed to print tree")
		}
		if opts.mountPoint == "" {
			return
		}
	}

	if opts.mountPoint == "" {
		logger.Fatal().Msg("Mount point not specified; it must be passed as the argument")
	}
	// Try unmount if requested
	if opts.umount {
		cmd := exec.Command("fusermount", "-u", opts.mountPoint)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	fs := treefs.New(cfg, res.Tree)
	if err := fs.Serve(opts.mountPoint); err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount filesystem")
	}
	logger.Info().Str("mountpoint", opts.mountPoint).Msg("Filesystem mounted successfully")

	unmounted := make(chan struct{})
	go func() {
		_ = fs.Wait()
		close(unmounted)
	}()

	// Wait for termination signal or an external unmount
	select {
	case <-ctx.Done():
		logger.Info().Msg("Received signal, unmounting filesystem")
		if err := fs.Unmount(); err != nil {
			logger.Error().Err(err).Msg("Failed to unmount filesystem")
			os.Exit(1)
		}
		<-unmounted
		logger.Info().Msg("Filesystem unmounted successfully")
	case <-unmounted:
		_ = fs.Close()
		logger.Info().Msg("Filesystem unmounted externally")
	}
}

type cliOptions struct {
	configPath  string
	source      string
	token       string
	tokenHeader string
	verbose     int
	umount      bool
	printTree   bool
	allowOther  bool
	mountPoint  string

	// flags given explicitly on the command line; they win over the config file
	changed map[string]bool
}

func newFlagSet(opts *cliOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("treefs", pflag.ContinueOnError)
	fs.StringVarP(&opts.source, "source", "s", "", "Description location: http(s) URL, file:// URL or local path")
	fs.StringVarP(&opts.token, "token", "t", "", "Token sent with remote description requests")
	fs.StringVar(&opts.tokenHeader, "token-header", config.DefaultTokenHeader,
		`Header carrying the token; "Authorization" sends "Bearer <token>", any other header the raw token`)
	fs.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML or JSON config file")
	fs.IntVarP(&opts.verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace)")
	fs.BoolVarP(&opts.umount, "umount", "u", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	fs.BoolVarP(&opts.printTree, "print-tree", "p", false,
		"Print the tree to stdout before mounting; without a mount point, print and exit")
	fs.BoolVar(&opts.allowOther, "allow-other", false, "Let other users access the mount")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: treefs [flags] <mountpoint>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args (without the program name).
func parseFlags(args []string) (*cliOptions, error) {
	opts := &cliOptions{changed: make(map[string]bool)}
	fs := newFlagSet(opts)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fs.SetOutput(os.Stderr)
			fs.Usage()
		}
		return nil, err
	}
	fs.Visit(func(f *pflag.Flag) { opts.changed[f.Name] = true })

	switch fs.NArg() {
	case 0:
	case 1:
		opts.mountPoint = fs.Arg(0)
	default:
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(1))
	}
	if opts.mountPoint == "" && !opts.printTree {
		return nil, errors.New("mount point not specified")
	}
	return opts, nil
}

// buildConfig layers defaults, the config file and explicit flags, in that
// order.
func buildConfig(opts *cliOptions) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if opts.configPath != "" {
		override, err := config.LoadConfigOverrideFile(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.configPath, err)
		}
		cfg.Merge(override)
	}

	var flags config.ConfigOverride
	if opts.changed["verbose"] {
		flags.LogLvl = &opts.verbose
	}
	if opts.changed["source"] {
		flags.Source = &opts.source
	}
	if opts.changed["token"] {
		flags.Token = &opts.token
	}
	if opts.changed["token-header"] {
		flags.TokenHeader = &opts.tokenHeader
	}
	if opts.changed["allow-other"] {
		flags.AllowOther = &opts.allowOther
	}
	cfg.Merge(&flags)

	if cfg.Source == "" {
		return nil, errors.New("no description source; pass --source or set source in the config file")
	}
	return cfg, nil
}
