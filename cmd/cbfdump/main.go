package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/autodiag/gocbf/caesar"
)

func main() {
	dumpStrings := flag.String("dump_strings", "", "write the container string pool as CSV and exit")
	loadStrings := flag.String("load_strings", "", "replace container strings from a CSV before decoding")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage:")
		fmt.Println("  cbfdump <INPUT.CBF>")
		fmt.Println("  cbfdump -dump_strings <STRINGS.csv> <INPUT.CBF>")
		fmt.Println("  cbfdump -load_strings <STRINGS.csv> <INPUT.CBF>")
		os.Exit(1)
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	container, err := caesar.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("cannot open container : %v", err)
	}
	defer container.Close()

	if *dumpStrings != "" {
		f, err := os.Create(*dumpStrings)
		if err != nil {
			log.Fatalf("cannot create %v : %v", *dumpStrings, err)
		}
		defer f.Close()
		if err := container.DumpStrings(f); err != nil {
			log.Fatalf("string dump failed : %v", err)
		}
		log.Infof("string pool written to %v", *dumpStrings)
		return
	}
	if *loadStrings != "" {
		f, err := os.Open(*loadStrings)
		if err != nil {
			log.Fatalf("cannot open %v : %v", *loadStrings, err)
		}
		if err := container.LoadStrings(f); err != nil {
			log.Fatalf("string load failed : %v", err)
		}
		f.Close()
	}

	if err := container.Decode(); err != nil {
		log.Fatalf("decode failed : %v", err)
	}
	for _, ecu := range container.ECUs {
		exported := ecu.Export()
		raw, err := json.MarshalIndent(&exported, "", "  ")
		if err != nil {
			log.Fatalf("cannot serialize ECU %v : %v", ecu.Qualifier, err)
		}
		outPath := fmt.Sprintf("%v.json", ecu.Qualifier)
		if err := os.WriteFile(outPath, raw, 0644); err != nil {
			log.Fatalf("cannot write %v : %v", outPath, err)
		}
		log.Infof("ECU %v decoded, output file is %v", ecu.Qualifier, outPath)
	}
}
