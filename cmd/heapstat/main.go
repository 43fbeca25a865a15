package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/tuannm99/novaheap/internal"
	"github.com/tuannm99/novaheap/internal/engine"
	"github.com/tuannm99/novaheap/internal/record"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	dataDir := flag.String("data-dir", "", "Data directory (overrides storage.workdir)")
	selectivity := flag.Float64("sel", 1.0, "Selectivity factor for the cardinality column")
	dump := flag.String("dump", "", "Dump every page of the named table")
	flag.Parse()

	cfg := internal.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = internal.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *dataDir != "" {
		cfg.Storage.Workdir = *dataDir
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	db, err := engine.Open(cfg.Storage.Workdir, engine.OptionsFromConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("close database", "err", err)
		}
	}()

	if *dump != "" {
		if err := dumpTable(db, *dump); err != nil {
			slog.Error("dump failed", "table", *dump, "err", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.ComputeStatistics(ctx); err != nil {
		slog.Error("compute statistics", "err", err)
		return
	}
	if err := report(db, *selectivity); err != nil {
		slog.Error("report", "err", err)
	}
}

func report(db *engine.Database, sel float64) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tPAGES\tSIZE\tTUPLES\tSCAN COST\tCARDINALITY")

	for _, name := range db.TableNames() {
		hf, err := db.OpenTable(name)
		if err != nil {
			return err
		}
		ts, ok := db.Stats().Get(name)
		if !ok {
			continue
		}

		pages, err := hf.PageCount()
		if err != nil {
			return err
		}
		info, err := os.Stat(hf.Path())
		if err != nil {
			return err
		}
		cost, err := db.Estimates().ScanCost(name, ts)
		if err != nil {
			return err
		}
		card, err := db.Estimates().Cardinality(name, ts, sel)
		if err != nil {
			return err
		}

		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			name,
			pages,
			humanize.IBytes(uint64(info.Size())),
			humanize.Comma(int64(ts.TotalTuples())),
			humanize.Commaf(cost),
			humanize.Comma(int64(card)),
		)
	}
	return tw.Flush()
}

func dumpTable(db *engine.Database, name string) error {
	hf, err := db.OpenTable(name)
	if err != nil {
		return err
	}
	n, err := hf.PageCount()
	if err != nil {
		return err
	}
	fmt.Printf("table %s (%s), %d pages\n", name, hf.Schema(), n)

	for i := 0; i < n; i++ {
		pid := record.PageID{TableID: hf.ID(), PageNo: uint32(i)}
		p, err := hf.ReadPage(pid)
		if err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		if tx, perm, ok := db.Pool().Holder(pid); ok {
			fmt.Printf("resident last_tx=%d perm=%s\n", tx, perm)
		}
		if err := p.Debug(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}
