package main

import (
	"flag"
	"log"
	"os"
	"runtime/pprof"

	"github.com/hailam/chesstutor/internal/engine"
	"github.com/hailam/chesstutor/internal/uci"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	difficulty = flag.String("difficulty", "medium", "move selection strength: beginner, easy, medium or hard")
	hintDepth  = flag.Int("hint-depth", 2, "search depth used to rank hints")
)

func main() {
	flag.Parse()

	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	d, err := engine.ParseDifficulty(*difficulty)
	if err != nil {
		log.Fatal(err)
	}

	cfg := engine.DefaultConfig()
	cfg.HintDepth = *hintDepth
	eng, err := engine.NewEngine(cfg)
	if err != nil {
		log.Fatal("could not create engine: ", err)
	}
	defer eng.Close()
	eng.SetDifficulty(d)

	// Create and run UCI protocol handler
	protocol := uci.New(eng, os.Stdout, os.Stderr)
	if err := protocol.Run(os.Stdin); err != nil {
		log.Printf("input error: %v", err)
	}
}
