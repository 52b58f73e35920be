// Package main provides the portdiff command-line tool: load a serialized
// diff DAG, extract the graph its current sinks define, and print a summary.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.arcalot.io/lang"
	log "go.arcalot.io/log/v2"
	"gopkg.in/yaml.v3"

	"github.com/portdiff/portdiff"
	"github.com/portdiff/portdiff/config"
)

// ExitCodeOK signals that the program terminated normally.
const ExitCodeOK = 0

// ExitCodeInvalidData signals that the program could not load its DAG or
// configuration file.
const ExitCodeInvalidData = 1

// ExitCodeExtractFailed indicates the loaded DAG's sinks did not form a
// valid view, or extraction failed.
const ExitCodeExtractFailed = 2

func main() {
	tempLogger := log.New(log.Config{
		Level:       log.LevelInfo,
		Destination: log.DestinationStdout,
		Stdout:      os.Stderr,
	})

	configFile := ""
	dagFile := ""

	flag.StringVar(&configFile, "config", configFile, "Configuration file to load, if any.")
	flag.StringVar(&dagFile, "dag", dagFile, "Serialized diff DAG to load (as produced by portdiff.MarshalDAG).")
	flag.Usage = func() {
		_, _ = os.Stderr.Write([]byte(`Usage: portdiff -dag FILENAME [OPTIONS]

Loads a serialized diff DAG and extracts the port graph its current sinks
define, printing a node/edge summary to stdout as YAML.

Options:

  -config FILENAME  The portdiff configuration file to load, if any.

  -dag FILENAME     The serialized diff DAG to load.
`))
	}
	flag.Parse()

	if dagFile == "" {
		flag.Usage()
		os.Exit(ExitCodeInvalidData)
	}

	var configData []byte
	var err error
	if configFile != "" {
		configData, err = os.ReadFile(configFile)
		if err != nil {
			tempLogger.Errorf("failed to read configuration file %s (%v)", configFile, err)
			os.Exit(ExitCodeInvalidData)
		}
	}
	cfg, err := config.Load(configData)
	if err != nil {
		tempLogger.Errorf("failed to parse configuration file %s (%v)", configFile, err)
		os.Exit(ExitCodeInvalidData)
	}
	logger := log.New(cfg.Log).WithLabel("source", "main")

	dagData, err := os.ReadFile(dagFile)
	if err != nil {
		logger.Errorf("failed to read DAG file %s (%v)", dagFile, err)
		os.Exit(ExitCodeInvalidData)
	}

	os.Exit(run(logger, dagData))
}

func run(logger log.Logger, dagData []byte) int {
	store, err := portdiff.UnmarshalDAG(logger, dagData)
	if err != nil {
		logger.Errorf("failed to load DAG (%v)", err)
		return ExitCodeInvalidData
	}

	sinks := store.Sinks()
	logger.Infof("loaded DAG with %d current sink(s)", len(sinks))

	view, err := portdiff.NewView(store, sinks)
	if err != nil {
		logger.Errorf("current sinks do not form a valid view (%v)", err)
		return ExitCodeExtractFailed
	}

	g, err := portdiff.Extract(view)
	if err != nil {
		logger.Errorf("extraction failed (%v)", err)
		return ExitCodeExtractFailed
	}

	summary := map[string]int{
		"nodes": len(g.Nodes()),
		"edges": len(g.Edges()),
	}
	fmt.Printf("%s", lang.Must2(yaml.Marshal(summary)))
	return ExitCodeOK
}
