package cli

import (
	"fmt"
	"os"

	"github.com/iudanet/gymsync/internal/client/outbox"
	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/client/sync"
)

// App собирает компоненты клиента, нужные командам.
type App struct {
	Sync       sync.Service
	Dispatcher *outbox.Dispatcher
	Store      storage.EntityStorage
}

// PrintUsage выводит справку по командам клиента
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `gymsync client - offline-capable workout catalog replica

Usage:
  gymsync-client [flags] <command> [args]

Commands:
  seed                              full initial sync of every entity kind
  delta                             incremental sync from persisted cursors
  push                              dispatch pending local changes upstream
  status                            show sync state and pending outbox size
  edit-descriptor <guid|new> <text> create or edit a descriptor locally
  edit-exercise <guid> <name>       rename an exercise locally
  delete-exercise <guid>            soft-delete an exercise locally

Flags:
  -server  server URL (default http://localhost:8080)
  -db      path to local database
  -secret  shared auth secret used to mint the device token
  -device  device identifier
  -version show version information
`)
}
