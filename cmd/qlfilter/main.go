// Command qlfilter loads named filters from config, prints their SQL and
// runs them against a status store.
//
//	qlfilter -config qlfilter.yaml -list 'go*'
//	qlfilter -config qlfilter.yaml -sql gophers
//	qlfilter -config qlfilter.yaml -load statuses.json -run gophers
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	u "github.com/araddon/gou"

	"github.com/IroiKanta/StarryEyes/build"
	"github.com/IroiKanta/StarryEyes/config"
	"github.com/IroiKanta/StarryEyes/filterqlvm"
	"github.com/IroiKanta/StarryEyes/filterqlvm/compiler"
	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/receive"
	"github.com/IroiKanta/StarryEyes/registry"
	"github.com/IroiKanta/StarryEyes/sources"
	"github.com/IroiKanta/StarryEyes/store"
)

func main() {
	configPath := flag.String("config", "", "config file, default ./qlfilter.yaml")
	list := flag.String("list", "", "list named filters matching a glob pattern")
	sqlName := flag.String("sql", "", "print the WHERE fragment of a named filter")
	runName := flag.String("run", "", "run a named filter against the store")
	load := flag.String("load", "", "json file of statuses to write to the store first")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	u.SetupLogging(cfg.LogLevel)
	u.SetColorOutput()

	if err := run(context.Background(), cfg, *list, *sqlName, *runName, *load); err != nil {
		u.Errorf("qlfilter: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, list, sqlName, runName, load string) error {
	reg, err := registry.New()
	if err != nil {
		return err
	}
	b := &build.Builder{
		Registry:   reg,
		Search:     receive.NewHub(sources.SearchKey),
		Track:      receive.NewHub(sources.TrackKey),
		Comparison: cfg.Comparison(),
	}
	if err := build.Register(b, reg, cfg.Filters); err != nil {
		return err
	}
	vm := filterqlvm.NewOptimizedVM(compiler.WithVersioner(reg))

	if list != "" {
		names, err := reg.Names(list)
		if err != nil {
			return err
		}
		for _, name := range names {
			def, _ := reg.Lookup(name)
			fmt.Printf("%-20s %s\n", name, def.Query().ToQuery())
		}
	}

	if sqlName != "" {
		def, ok := reg.Lookup(sqlName)
		if !ok {
			return fmt.Errorf("no filter named %q", sqlName)
		}
		sql, err := vm.SQL(def.Query())
		if err != nil {
			return err
		}
		fmt.Println(sql)
	}

	if runName == "" && load == "" {
		return nil
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	if load != "" {
		statuses, err := readStatuses(load)
		if err != nil {
			return err
		}
		if err := st.Put(ctx, statuses...); err != nil {
			return err
		}
		u.Infof("loaded %d statuses from %s", len(statuses), load)
	}

	if runName != "" {
		def, ok := reg.Lookup(runName)
		if !ok {
			return fmt.Errorf("no filter named %q", runName)
		}
		sql, err := vm.SQL(def.Query())
		if err != nil {
			return err
		}
		rows, err := st.Search(ctx, sql, cfg.Query.Limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			fmt.Printf("%d\t@%s\t%s\n", r.ID, r.ScreenName, r.Text)
		}
	}
	return nil
}

func readStatuses(path string) ([]*model.Status, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var statuses []*model.Status
	if err := json.NewDecoder(f).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for i, st := range statuses {
		if err := st.Validate(); err != nil {
			return nil, fmt.Errorf("%s: status #%d: %w", path, i, err)
		}
	}
	return statuses, nil
}
