package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/corey/mapbuilder/internal/app"
)

// isDBLockError returns true if the error chain contains a bbolt lock timeout.
// bbolt returns the string "timeout" when it cannot acquire the file lock
// within the configured deadline.
func isDBLockError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "timeout")
}

// diagnoseDBLock checks for a running server and returns actionable guidance
// when the cache cannot be opened due to lock contention. It distinguishes
// a live server, a stale port file and an unknown lock holder.
func diagnoseDBLock(root string) string {
	paths := app.NewPaths(root)
	portData, err := os.ReadFile(paths.PortFile)
	if err != nil {
		return "cache is locked by another process\n" +
			"  → find the process:  ps aux | grep 'mapbuilder'\n" +
			"  → kill it:           kill <PID>\n" +
			"  → then retry your command"
	}

	port := strings.TrimSpace(string(portData))
	if serverAlive(port) {
		return fmt.Sprintf("cache is locked by the running server on port %s\n"+
			"  → stop it first:  Ctrl-C in the terminal running 'mapbuilder serve'\n"+
			"  → or point this command at another cache:  MAPBUILDER_DB=/tmp/other.db", port)
	}

	return fmt.Sprintf("cache is locked: a server port file exists but nothing answers\n"+
		"  → a previous server may have crashed\n"+
		"  → find the process:  ps aux | grep 'mapbuilder serve'\n"+
		"  → kill it:           kill <PID>\n"+
		"  → clean up:          rm %s", paths.PortFile)
}

func serverAlive(port string) bool {
	client := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get("http://127.0.0.1:" + port + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
