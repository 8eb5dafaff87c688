package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/eccmem/eccmem/ecc"
	"github.com/eccmem/eccmem/internal/config"
	"github.com/eccmem/eccmem/internal/sim"
	"github.com/eccmem/eccmem/internal/store"
	"github.com/eccmem/eccmem/memctl"
)

var (
	codeName  string
	dataBits  int
	timeout   time.Duration
	cacheDir  string
	inMemory  bool
	force     bool
	cfgPath   string
	simCycles int
	simSeed   int64

	codesCmd = &cobra.Command{
		Use:   "codes",
		Short: "List the known code constructions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range ecc.Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a code through the matrix cache and print it",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Print a cached code without generating it",
		Args:  cobra.NoArgs,
		RunE:  runShow,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Drive the configured controller with random traffic",
		Args:  cobra.NoArgs,
		RunE:  runSimulate,
	}
)

func init() {
	for _, c := range []*cobra.Command{generateCmd, showCmd} {
		c.Flags().StringVar(&codeName, "code", ecc.KindHsiao.String(), "code kind, see `eccmem codes`")
		c.Flags().IntVar(&dataBits, "bits", 32, "data bits per word")
		c.Flags().StringVar(&cacheDir, "cache", "", "matrix cache directory")
	}
	generateCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "search budget for searched codes")
	generateCmd.Flags().BoolVar(&inMemory, "in-memory", false, "keep the cache in memory only")
	generateCmd.Flags().BoolVar(&force, "force", false, "regenerate even when a table is cached")
	_ = showCmd.MarkFlagRequired("cache")

	simulateCmd.Flags().StringVar(&cfgPath, "config", "", "YAML config file, defaults apply when empty")
	simulateCmd.Flags().IntVar(&simCycles, "cycles", 0, "override simulation.cycles")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "override simulation.seed")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func openStore(dir string, mem bool) (*store.Badger, error) {
	if mem || dir == "" {
		return store.Open(store.InMemoryConfig())
	}
	cfg := store.DefaultConfig(dir)
	cfg.Logger = slog.Default().With(slog.String("component", "badger"))
	return store.Open(cfg)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	kind, err := ecc.ParseKind(codeName)
	if err != nil {
		return err
	}
	st, err := openStore(cacheDir, inMemory)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	code, err := ecc.NewCache(st, ecc.WithCacheLogger(slog.Default())).Get(ctx, kind, dataBits, force)
	if err != nil {
		return err
	}
	return printCode(cmd.OutOrStdout(), code)
}

func runShow(cmd *cobra.Command, args []string) error {
	kind, err := ecc.ParseKind(codeName)
	if err != nil {
		return err
	}
	st, err := openStore(cacheDir, false)
	if err != nil {
		return err
	}
	defer st.Close()

	code, err := ecc.NewCache(st).Lookup(cmd.Context(), kind, dataBits)
	if errors.Is(err, ecc.ErrCacheMiss) {
		return fmt.Errorf("%s(%d) is not cached in %s, run generate first", kind, dataBits, cacheDir)
	}
	if err != nil {
		return err
	}
	return printCode(cmd.OutOrStdout(), code)
}

func printCode(w io.Writer, code *ecc.Code) error {
	h, err := code.ParityCheck()
	if err != nil {
		return err
	}
	g, err := code.Generator()
	if err != nil {
		return err
	}
	m, err := code.Metrics()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n\nH =\n%s\nG =\n%s\n", code, h, g)
	fmt.Fprintf(w, "row max %d, syndromes per bit %d, ones %d\n", m.RowMax, m.Syns, m.Ones)
	fmt.Fprintf(w, "correctable %d, detectable %d\n", len(code.Correctable()), len(code.Detectable()))
	if rep, ok := code.SearchReport(); ok {
		for _, goal := range rep.Goals {
			fmt.Fprintf(w, "goal %-28s value %-6d found %-5v optimal %v\n",
				goal.Description, goal.Value, goal.Found, goal.Optimal)
		}
		if rep.Cancelled {
			fmt.Fprintln(w, "search stopped early, the matrix is the best found")
		}
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("cycles") {
		cfg.Simulation.Cycles = simCycles
	}
	if cmd.Flags().Changed("seed") {
		cfg.Simulation.Seed = simSeed
	}
	if !cmd.Flags().Changed("log-level") {
		if err := setupLogging(cfg.LogLevel); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	kind, err := cfg.Kind()
	if err != nil {
		return err
	}

	st, err := openStore(cfg.Cache.Dir, cfg.Cache.InMemory)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signalContext()
	defer stop()
	genCtx := ctx
	if cfg.Code.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, cfg.Code.Timeout)
		defer cancel()
	}
	code, err := ecc.NewCache(st, ecc.WithCacheLogger(slog.Default())).Get(genCtx, kind, cfg.Code.DataBits, false)
	if err != nil {
		return err
	}

	spec := cfg.ControllerSpec()
	reg := prometheus.NewRegistry()
	setup, unit, err := sim.Prepare(code, spec, memctl.NewStats(reg, spec.Name))
	if err != nil {
		return err
	}
	slog.Info("simulating",
		slog.String("code", code.String()),
		slog.String("controller", unit.Name),
		slog.Int("cycles", cfg.Simulation.Cycles),
		slog.Int64("seed", cfg.Simulation.Seed))

	board, err := sim.Run(ctx, cfg.Scenario(), setup)
	if board != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, board)
		for _, f := range board.Failures {
			fmt.Fprintln(out, "  ", f)
		}
		if unit.WriteBack != nil {
			fmt.Fprintf(out, "repairs=%d", unit.WriteBack.Repairs())
			if unit.Refresh != nil {
				fmt.Fprintf(out, " refreshes=%d", unit.Refresh.Injected())
			}
			fmt.Fprintln(out)
		}
		if gerr := printCounters(out, reg); gerr != nil {
			return gerr
		}
	}
	if err != nil {
		return err
	}
	if board.Mismatches > 0 {
		return fmt.Errorf("%d responses did not match the written data", board.Mismatches)
	}
	return nil
}

func printCounters(w io.Writer, reg *prometheus.Registry) error {
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "controller" {
					continue
				}
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%-52s %g", name, m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return nil
}
