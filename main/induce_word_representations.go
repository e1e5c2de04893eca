package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/jiangfeng1124/singular/lib"
	"github.com/jiangfeng1124/singular/lib/settings"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	corpusPath := flag.String("corpus", "", "Path to the tokenized corpus file")
	outputDirectory := flag.String("output", "", "Directory for cached counts and induced representations")
	rareCutoff := flag.Int("rareCutoff", -1, "Collapse words with count at or below this; -1 derives it from the corpus")
	windowSize := flag.Int("windowSize", 3, "Context window span including the center word")
	sentencePerLine := flag.Bool("sentencePerLine", false, "Treat every corpus line as its own sentence")
	ccaDim := flag.Int("dim", 100, "Number of representation dimensions")
	smoothing := flag.Float64("smoothing", -1.0, "Additive variance smoothing; -1 derives it from the smallest marginal")
	numClusters := flag.Int("clusters", 0, "Number of k-means clusters; 0 uses the cca dimension")
	force := flag.Bool("force", false, "Recompute counts even when cached artifacts match")
	reset := flag.Bool("reset", false, "Clear the output directory before running")
	metricsAddress := flag.String("metricsAddress", "", "Serve prometheus metrics on this address while running, e.g. :9020")
	flag.Parse()

	if *corpusPath == "" || *outputDirectory == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *metricsAddress != "" {
		router := mux.NewRouter().StrictSlash(true)
		router.Handle("/metrics", promhttp.Handler())
		router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		go func() {
			log.Printf("metrics listening on %s\n", *metricsAddress)
			if err := http.ListenAndServe(*metricsAddress, router); err != nil {
				log.Printf("metrics server stopped: %v\n", err)
			}
		}()
	}

	config := settings.PipelineSettings{
		CorpusPath:      *corpusPath,
		OutputDirectory: *outputDirectory,
		RareCutoff:      *rareCutoff,
		WindowSize:      *windowSize,
		SentencePerLine: *sentencePerLine,
		CCADim:          *ccaDim,
		SmoothingTerm:   *smoothing,
		NumClusters:     *numClusters,
		Force:           *force,
	}

	pipeline, err := lib.NewPipeline(config)
	if err != nil {
		log.Fatalf("failed to set up pipeline: %v", err)
	}
	if *reset {
		if err := pipeline.ResetOutputDirectory(); err != nil {
			log.Fatalf("failed to reset output directory: %v", err)
		}
	}

	if err := pipeline.ExtractStatistics(); err != nil {
		log.Fatalf("failed to extract statistics: %v", err)
	}
	if err := pipeline.InduceLexicalRepresentations(); err != nil {
		log.Fatalf("failed to induce representations: %v", err)
	}

	resolved := pipeline.Settings()
	fmt.Printf("corpus: %s (%d tokens, %d word types)\n",
		resolved.CorpusPath, pipeline.Stats.NumTokens, pipeline.Stats.WordDict.Len())
	fmt.Printf("rare cutoff %d, smoothing %g\n", resolved.RareCutoff, pipeline.SmoothingUsed)
	fmt.Printf("achieved rank %d of requested %d\n", pipeline.AchievedRank, resolved.CCADim)
	limit := len(pipeline.SingularValues)
	if limit > 10 {
		limit = 10
	}
	fmt.Printf("leading correlations: %v\n", pipeline.SingularValues[:limit])
	fmt.Printf("word vectors: %s\n", pipeline.WordVectorsPath())
	fmt.Printf("clusters: %s\n", pipeline.KMeansPath())
}
