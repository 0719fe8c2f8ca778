// Lumorad — relay daemon entry point.
//
// The daemon owns the authoritative message store and serves it to clients
// over WebSocket. With -db it persists messages to sqlite; without it the
// store lives in memory and vanishes on exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"

	"github.com/lumora-app/lumora/internal/relay"
	"github.com/lumora-app/lumora/internal/store"
	"github.com/lumora-app/lumora/internal/util"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	addrFlag := flag.String("addr", ":8443", "Listen address")
	dbFlag := flag.String("db", "", "Sqlite database path (in-memory store when omitted)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Lumorad — v%s", version))
	pterm.Println()

	var st store.Store
	if *dbFlag != "" {
		sqlStore, err := store.OpenSQL(*dbFlag)
		if err != nil {
			util.LogError("open database: %v", err)
			os.Exit(1)
		}
		defer sqlStore.Close()
		st = sqlStore
		util.LogInfo("persisting messages to %s", *dbFlag)
	} else {
		st = store.NewMemStore()
		util.LogWarning("no -db given — messages are lost on exit")
	}

	srv := relay.NewServer(st)
	port, err := srv.Start(*addrFlag)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	defer srv.Close()
	util.LogSuccess("relay ready — clients connect with -relay ws://<host>:%d", port)

	<-ctx.Done()
	util.LogInfo("shutting down")
}
