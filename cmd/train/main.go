package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	rankgen "github.com/LdDl/rankgen-go"
)

func main() {
	cfg, err := rankgen.ParseConfig(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatalf("%v", err)
	}
	fmt.Printf("%+v\n", *cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.EnsureOutDir(); err != nil {
		log.Fatalf("%v", err)
	}

	rt := rankgen.NewRuntime(cfg)

	ds, err := rankgen.SelectDataset(cfg, rt)
	if err != nil {
		log.Fatalf("Can't construct dataset: %v", err)
	}
	loader, err := rankgen.NewDataLoader(ds, cfg.BatchSize, cfg.Workers, rt.Rand)
	if err != nil {
		log.Fatalf("Can't construct data loader: %v", err)
	}

	if err := rankgen.Train(cfg, rt, ds, loader); err != nil {
		log.Fatalf("Training failed: %+v", err)
	}
}
