package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jsaot/debug/internal/config"
	"github.com/jsaot/debug/internal/dap"
	"github.com/jsaot/debug/internal/debugger"
	"github.com/jsaot/debug/internal/errors"
	"github.com/jsaot/debug/internal/mcp"
	"github.com/jsaot/debug/internal/provider"
	"github.com/jsaot/debug/internal/version"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	mode := flag.String("mode", "", "Capability mode: 'readonly' or 'full'")
	records := flag.String("records", "", "Directory with debug information records")
	adapter := flag.String("adapter", "", "TCP address of the engine's DAP server")
	showVersion := flag.Bool("version", false, "Show version and exit")
	help := flag.Bool("help", false, "Show help and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("jsaot-debug version %s\n", version.Version)
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line overrides
	if *mode == "readonly" {
		cfg.Mode = config.ModeReadOnly
	} else if *mode == "full" {
		cfg.Mode = config.ModeFull
	}
	if *records != "" {
		cfg.Records.Root = *records
	}
	if *adapter != "" {
		cfg.Adapter.Address = *adapter
	}

	prov, err := provider.NewFileProvider(cfg.Records.Root, cfg.Records.Suffix, cfg.Records.Watch)
	if err != nil {
		log.Fatalf("Failed to open records directory: %v", err)
	}
	defer prov.Close()

	channel, err := dap.Connect(cfg.Adapter.Address)
	if err != nil {
		log.Fatalf("%v", errors.AdapterConnectFailed(cfg.Adapter.Address, err))
	}
	defer channel.Close()

	dbg := debugger.New(channel, prov)

	// Create and start the server
	server := mcp.NewServer(cfg, dbg)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("Shutting down...")
		channel.Close()
		prov.Close()
		os.Exit(0)
	}()

	// Start serving via stdio
	log.Println("jsaot-debug server starting...")
	if err := server.ServeStdio(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printHelp() {
	fmt.Println(`jsaot-debug: source-level debug server for AOT-compiled JavaScript

Bridges a Java-to-JavaScript AOT build and a running engine: decodes the
compiler's debug information records, attaches to the engine through a DAP
adapter, and exposes source-level debugging as MCP tools.

USAGE:
    jsaot-debug [OPTIONS]

OPTIONS:
    -config <path>     Path to configuration file (JSON)
    -mode <mode>       Capability mode: 'readonly' or 'full'
    -records <dir>     Directory with debug information records (*.jdbg)
    -adapter <addr>    TCP address of the engine's DAP server
    -version           Show version and exit
    -help              Show this help message

CONFIGURATION:
    Create a JSON configuration file to customize behavior:

    {
        "mode": "full",
        "records": {
            "root": "./build",
            "suffix": ".jdbg",
            "watch": true
        },
        "adapter": {
            "address": "127.0.0.1:4711"
        }
    }

TOOLS:
    Inspection (both modes):
        debug_status             Session and script state
        debug_stack              Source-level call stack
        debug_list_breakpoints   List current breakpoints
        debug_map_variable       Translate a generated variable name
        debug_map_field          Translate a generated field name

    Control (full mode only):
        debug_set_breakpoint     Set a breakpoint at a source coordinate
        debug_clear_breakpoint   Remove a breakpoint
        debug_pause              Pause execution
        debug_continue           Resume execution
        debug_step               Step over/into/out
        debug_run_to_line        Run to a source line`)
}
