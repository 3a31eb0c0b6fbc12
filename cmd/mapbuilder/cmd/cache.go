package cmd

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/corey/mapbuilder/internal/adapters/bbolt"
	"github.com/corey/mapbuilder/internal/app"
	"github.com/spf13/cobra"
)

var wipeForce bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the upstream response cache",
}

var cacheWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all cached LightBox responses",
	Args:  cobra.NoArgs,
	RunE:  runCacheWipe,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached entries per payload kind",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

func init() {
	cacheWipeCmd.Flags().BoolVar(&wipeForce, "force", false, "Skip confirmation prompt")
	cacheCmd.AddCommand(cacheWipeCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
}

// openCache opens the configured cache file. A nil store means there is no
// cache yet.
func openCache() (*bbolt.Store, string, error) {
	root := projectRoot()
	settings, err := loadSettings()
	if err != nil {
		return nil, "", err
	}
	dbPath := app.Resolve(root, settings.Cache.Path)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, dbPath, nil
	}
	store, err := bbolt.NewStore(dbPath)
	if err != nil {
		if isDBLockError(err) {
			return nil, dbPath, fmt.Errorf("%w\n%s", err, diagnoseDBLock(root))
		}
		return nil, dbPath, fmt.Errorf("open cache: %w", err)
	}
	return store, dbPath, nil
}

func runCacheWipe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	store, dbPath, err := openCache()
	if err != nil {
		return err
	}
	if store == nil {
		fmt.Fprintln(out, "⚡ no cache to wipe")
		return nil
	}
	defer store.Close()

	if !wipeForce {
		fmt.Fprintf(out, "⚠ This will delete every cached response in %s. Continue? [y/N] ", dbPath)
		reader := bufio.NewReader(cmd.InOrStdin())
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "cancelled")
			return nil
		}
	}

	n, err := store.Purge()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "⚡ cache wiped (%d entries)\n", n)
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	store, dbPath, err := openCache()
	if err != nil {
		return err
	}
	if store == nil {
		fmt.Fprintln(out, "⚡ no cache yet")
		return nil
	}
	defer store.Close()

	counts, err := store.Stats()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(counts))
	total := 0
	for name, n := range counts {
		names = append(names, name)
		total += n
	}
	sort.Strings(names)

	fmt.Fprintf(out, "%s⚡ %d cached responses%s │ %s\n", colorBold, total, colorReset, dbPath)
	for _, name := range names {
		fmt.Fprintf(out, "  %s%-12s%s %d\n", colorCyan, name, colorReset, counts[name])
	}
	return nil
}
