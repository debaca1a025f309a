package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/user"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/pspoerri/tileslicer/internal/blobstore"
	"github.com/pspoerri/tileslicer/internal/model"
	"github.com/pspoerri/tileslicer/internal/orchestrator"
	"github.com/pspoerri/tileslicer/internal/taskstore"
	"github.com/pspoerri/tileslicer/internal/tileformat"
	"github.com/pspoerri/tileslicer/internal/tilesetdoc"
	"github.com/pspoerri/tileslicer/internal/tilingengine"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		profilePath string
		owner       string
		showVersion bool
		verbose     bool
		cpuProfile  string
		memProfile  string
		pollSeconds int
	)

	flag.StringVar(&profilePath, "profile", "", "Path to a TOML orchestrator profile (default: built-in defaults)")
	flag.StringVar(&owner, "user", "", "Creator identity attached to the task (default: current OS user)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose progress output")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	flag.StringVar(&memProfile, "memprofile", "", "Write memory profile to file")
	flag.IntVar(&pollSeconds, "poll-interval", 2, "Seconds between progress polls")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tileslicer [flags] <task-request.json|.yaml>\n\n")
		fmt.Fprintf(os.Stderr, "Slice a 3D mesh into a Cesium 3D Tiles hierarchy.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("tileslicer %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatalf("Creating CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("Starting CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
		if verbose {
			log.Printf("CPU profiling enabled → %s", cpuProfile)
		}
	}

	if memProfile != "" {
		defer func() {
			f, err := os.Create(memProfile)
			if err != nil {
				log.Fatalf("Creating memory profile: %v", err)
			}
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatalf("Writing memory profile: %v", err)
			}
			if verbose {
				log.Printf("Memory profile written → %s", memProfile)
			}
		}()
	}

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	requestPath := args[0]

	if owner == "" {
		if u, err := user.Current(); err == nil {
			owner = u.Username
		} else {
			owner = "unknown"
		}
	}

	profile, err := orchestrator.LoadProfile(profilePath)
	if err != nil {
		log.Fatalf("Loading profile: %v", err)
	}

	req, err := orchestrator.LoadTaskRequest(requestPath)
	if err != nil {
		log.Fatalf("Loading task request: %v", err)
	}

	if verbose {
		log.Printf("tileslicer %s (commit %s, built %s)", version, commit, buildDate)
		log.Printf("  %-16s %s\n", "Source:", req.SourcePath)
		log.Printf("  %-16s %s\n", "Strategy:", req.Config.Strategy)
		log.Printf("  %-16s %s\n", "Output format:", req.Config.OutputFormat)
		log.Printf("  %-16s %d\n", "Workers:", profile.WorkerCount)
	}

	store := blobstore.NewLocalFilesystem()
	tasks := taskstore.NewMemory()

	// Loaders is left empty: decoding a source mesh format (OSGB, glTF, OBJ,
	// ...) into triangles is a collaborator this repo declares but doesn't
	// ship, the same way GeometryCodec's Draco encoder is declared but not
	// implemented. A deployment wires in its own ioiface.ModelLoader set.
	engine := &tilingengine.Engine{
		Store:     store,
		TaskStore: tasks,
		Tileset: &tilesetdoc.Writer{
			Store: store,
		},
		GeneratorOptions: tileformat.Options{},
	}

	orch := orchestrator.New(tasks, store, engine, profile, "")

	ctx := context.Background()
	task, err := orch.CreateTask(ctx, req, owner)
	if err != nil {
		log.Fatalf("Creating task: %v", err)
	}
	log.Printf("Task %s created (output: %s)", task.ID, task.OutputPrefix)

	orch.Run(task.ID)

	pollEvery := time.Duration(pollSeconds) * time.Second
	if pollEvery <= 0 {
		pollEvery = 2 * time.Second
	}

	start := time.Now()
	for {
		time.Sleep(pollEvery)

		report, err := orch.GetProgress(ctx, task.ID)
		if err != nil {
			log.Fatalf("Polling progress: %v", err)
		}
		if verbose {
			log.Printf("  %3d%% %-12s tiles=%d eta=%.0fs", report.Progress, report.Stage, report.ProcessedTiles, report.ETASeconds)
		}

		switch report.Stage {
		case model.StatusCompleted:
			fmt.Printf("Done: task %s completed in %v (%d tiles) → %s/tileset.json\n",
				task.ID, time.Since(start).Round(time.Millisecond), report.ProcessedTiles, task.OutputPrefix)
			return
		case model.StatusFailed:
			log.Fatalf("Task %s failed", task.ID)
		case model.StatusCancelled:
			log.Fatalf("Task %s was cancelled", task.ID)
		}
	}
}
