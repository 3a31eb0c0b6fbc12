package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corey/mapbuilder/internal/adapters/bbolt"
	"github.com/corey/mapbuilder/internal/app"
	"github.com/corey/mapbuilder/internal/domain/buildable"
	"github.com/corey/mapbuilder/internal/domain/zoning"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CLI: estimate, parse, lookup, config and cache commands end to end
// Expectation: commands run against fixtures in a temp project, never the
// network, and print both terminal and JSON forms
// =============================================================================

const sf3Zoning = `{
	"code": "SF-3",
	"frontSetback": {"description": "25 feet"},
	"rearSetback": {"description": "10 feet"},
	"sideSetback": {"description": "5 feet"},
	"maximumBuildingHeight": {"description": "35 feet or 3 stories, whichever is less"},
	"densityFloorArea": {"value": "0.4"}
}`

const parcelInput = `{
	"lotAreaSquareFeet": 10000,
	"zoning": {
		"frontSetback": "25 feet",
		"rearSetback": "10 feet",
		"sideSetback": "5 feet",
		"maxHeight": "35 feet",
		"far": 0.4
	}
}`

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes the root command with args and stdin, returning stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// setupProject switches to an empty project dir with a clean environment.
func setupProject(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"LOG_LEVEL", "DEBUG", "LIGHTBOX_API_KEY", "LIGHTBOX_BASE_URL",
		"MAPBUILDER_FIXTURES", "MAPBUILDER_DB", "PORT", "MAPBUILDER_CACHE_TTL",
	} {
		t.Setenv(k, "")
	}
	root := t.TempDir()
	t.Chdir(root)
	return root
}

// writeFixtures writes two parcels, one empty and one built on, and points
// the offline provider at them.
func writeFixtures(t *testing.T, root string) {
	t.Helper()
	dir := filepath.Join(root, "fixtures")
	require.NoError(t, os.MkdirAll(dir, 0755))
	files := map[string]string{
		"empty.json": `{
			"parcel": {"id": "p-100", "location": {"streetAddress": "100 Congress Ave"},
				"geometry": {"wkt": "POLYGON ((-97.7430 30.2650, -97.7425 30.2650, -97.7425 30.2655, -97.7430 30.2655, -97.7430 30.2650))"},
				"derived": {"calculatedLotArea": 10000}},
			"structures": [],
			"zonings": [` + sf3Zoning + `]
		}`,
		"built.json": `{
			"parcel": {"id": "p-200", "location": {"streetAddress": "200 Congress Ave"},
				"geometry": {"wkt": "POLYGON ((-97.7420 30.2660, -97.7415 30.2660, -97.7415 30.2665, -97.7420 30.2665, -97.7420 30.2660))"},
				"derived": {"calculatedLotArea": 8000}},
			"structures": [{"id": "s-1"}],
			"zonings": [` + sf3Zoning + `]
		}`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	t.Setenv("MAPBUILDER_FIXTURES", dir)
}

// =============================================================================
// estimate
// =============================================================================

func TestEstimate_Stdin(t *testing.T) {
	setupProject(t)
	out, err := run(t, parcelInput, "estimate")
	require.NoError(t, err)

	assert.Contains(t, out, "⚡ buildable estimate")
	assert.Contains(t, out, "lot 10,000 sq ft")
	assert.Contains(t, out, "front 25 ft")
	assert.Contains(t, out, "5,500 sq ft")
	assert.Contains(t, out, "4,000 sq ft")
	assert.NotContains(t, out, "⚠")
}

func TestEstimate_FixtureFileJSON(t *testing.T) {
	root := setupProject(t)
	path := filepath.Join(root, "parcel.json")
	body := `{"parcel": {"id": "p-1", "derived": {"calculatedLotArea": 10000}}, "zonings": [` + sf3Zoning + `, ` + sf3Zoning + `]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	out, err := run(t, "", "estimate", "--json", path)
	require.NoError(t, err)

	var got struct {
		BuildableArea map[string]any `json:"buildableArea"`
		Warnings      []string       `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 5500.0, got.BuildableArea["buildableFootprint"])
	assert.Equal(t, 3.0, got.BuildableArea["maxHeight"])
	assert.Equal(t, []string{buildable.WarnMultipleZonings}, got.Warnings)
}

func TestEstimate_LotAreaOverride(t *testing.T) {
	setupProject(t)
	out, err := run(t, parcelInput, "estimate", "--lot-area", "400", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "lot 400 sq ft")
	assert.Contains(t, out, "-500 sq ft")
	assert.Contains(t, out, buildable.WarnFootprintNegative)
}

func TestEstimate_InvalidFARIsNull(t *testing.T) {
	setupProject(t)
	in := strings.Replace(parcelInput, `"far": 0.4`, `"far": 0`, 1)
	body := `{"parcel": {"id": "p-1", "derived": {"calculatedLotArea": 10000}}, "zonings": [` +
		strings.Replace(sf3Zoning, `"0.4"`, `"varies"`, 1) + `]}`

	out, err := run(t, body, "estimate", "--json")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	report := got["buildableArea"].(map[string]any)
	assert.Nil(t, report["far"])
	assert.Nil(t, report["maxBuildableArea"])
	assert.Contains(t, got["warnings"], buildable.WarnFARInvalid)

	// A numeric zero is a valid ratio.
	out, err = run(t, in, "estimate", "--json")
	require.NoError(t, err)
	assert.NotContains(t, out, buildable.WarnFARInvalid)
}

func TestEstimate_Errors(t *testing.T) {
	setupProject(t)

	_, err := run(t, `{"zoning": {"far": 1}}`, "estimate")
	var missing *buildable.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "lotAreaSquareFeet", missing.Field)

	_, err = run(t, `{"parcel": {"id": "p-1"}, "zonings": []}`, "estimate")
	assert.True(t, errors.Is(err, app.ErrNoZoning))

	_, err = run(t, `not json`, "estimate")
	assert.Error(t, err)

	_, err = run(t, "", "estimate", "/no/such/file.json")
	assert.Error(t, err)
}

func TestEstimate_ConfigExtraPhrases(t *testing.T) {
	root := setupProject(t)
	cfgPath := filepath.Join(root, "mb.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("zoning:\n  extra_phrases:\n    whichever is more restrictive: min\n"), 0644))

	in := strings.Replace(parcelInput, `"25 feet"`, `"25 feet or 15 feet, whichever is more restrictive"`, 1)
	out, err := run(t, in, "--config", cfgPath, "estimate")
	require.NoError(t, err)
	assert.Contains(t, out, "front 15 ft")

	out, err = run(t, in, "estimate")
	require.NoError(t, err)
	assert.Contains(t, out, "front 25 ft", "without the phrase the first number wins")
}

// =============================================================================
// parse
// =============================================================================

func TestParse_Terminal(t *testing.T) {
	setupProject(t)
	out, err := run(t, "", "parse", "10 ft or 20 ft, whichever is greater", "see plan")
	require.NoError(t, err)

	assert.Contains(t, out, "conditional-max")
	assert.Contains(t, out, "Numbers:  [10, 20]")
	assert.Contains(t, out, "20")
	assert.Contains(t, out, "Min:      10")
	assert.Contains(t, out, "unparseable")
	assert.Contains(t, out, "(none)")
}

func TestParse_JSON(t *testing.T) {
	setupProject(t)
	out, err := run(t, "", "parse", "--json", "5 or 3.5, whichever is less")
	require.NoError(t, err)

	var rules []zoning.Rule
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, zoning.KindConditionalMin, rules[0].Kind)
	assert.Equal(t, []float64{5, 3.5}, rules[0].Values)
}

func TestParse_RequiresArgs(t *testing.T) {
	setupProject(t)
	_, err := run(t, "", "parse")
	assert.Error(t, err)
}

// =============================================================================
// lookup
// =============================================================================

func TestLookup_Address(t *testing.T) {
	root := setupProject(t)
	writeFixtures(t, root)

	out, err := run(t, "", "lookup", "--address", "congress")
	require.NoError(t, err)
	assert.Contains(t, out, "2 parcels")
	assert.Contains(t, out, "1 empty")
	assert.Contains(t, out, "p-100")
	assert.Contains(t, out, "5,500 sq ft")
	assert.Contains(t, out, "occupied (1 structures)")
}

func TestLookup_GeometryJSON(t *testing.T) {
	root := setupProject(t)
	writeFixtures(t, root)

	out, err := run(t, "", "lookup", "--json", "--wkt", "POINT (-97.74275 30.26525)", "--buffer", "5")
	require.NoError(t, err)

	var got []buildable.Assessment
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "p-100", got[0].ParcelID)
	assert.True(t, got[0].IsEmpty)
	require.NotNil(t, got[0].BuildableArea)
	assert.Equal(t, 5500.0, got[0].BuildableArea.BuildableFootprint)
}

func TestLookup_OneParcelFailsOthersReported(t *testing.T) {
	root := setupProject(t)
	writeFixtures(t, root)
	broken := `{
		"parcel": {"id": "p-300", "location": {"streetAddress": "300 Congress Ave"},
			"derived": {"calculatedLotArea": 9000}},
		"structures": [],
		"zonings": []
	}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "fixtures", "nozoning.json"), []byte(broken), 0644))

	out, err := run(t, "", "lookup", "--address", "congress")
	require.NoError(t, err)
	assert.Contains(t, out, "3 parcels")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "p-300")
	assert.Contains(t, out, "no zoning designation")
	assert.Contains(t, out, "5,500 sq ft", "the good parcel is still estimated")

	out, err = run(t, "", "lookup", "--json", "--address", "congress")
	require.NoError(t, err)
	var got []buildable.Assessment
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)
	byID := map[string]buildable.Assessment{}
	for _, g := range got {
		byID[g.ParcelID] = g
	}
	assert.Contains(t, byID["p-300"].Error, "no zoning designation")
	assert.Empty(t, byID["p-100"].Error)
	require.NotNil(t, byID["p-100"].BuildableArea)
	assert.Equal(t, 5500.0, byID["p-100"].BuildableArea.BuildableFootprint)
}

func TestLookup_AllParcelsFail(t *testing.T) {
	root := setupProject(t)
	writeFixtures(t, root)
	broken := `{"parcel": {"id": "p-300", "location": {"streetAddress": "300 Elm St"}}, "structures": [], "zonings": []}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "fixtures", "nozoning.json"), []byte(broken), 0644))

	_, err := run(t, "", "lookup", "--address", "elm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no zoning designation")
}

func TestLookup_NoParcels(t *testing.T) {
	root := setupProject(t)
	writeFixtures(t, root)

	out, err := run(t, "", "lookup", "--address", "nowhere")
	require.NoError(t, err)
	assert.Contains(t, out, "no parcels found")
}

func TestLookup_ParcelID(t *testing.T) {
	root := setupProject(t)
	writeFixtures(t, root)

	out, err := run(t, "", "lookup", "--parcel", "p-100", "--lot-area", "400")
	require.NoError(t, err)
	assert.Contains(t, out, "lot 400 sq ft")
	assert.Contains(t, out, buildable.WarnFootprintNegative)
}

func TestLookup_FlagRules(t *testing.T) {
	root := setupProject(t)
	writeFixtures(t, root)

	_, err := run(t, "", "lookup")
	assert.Error(t, err, "one of --address, --wkt, --parcel is required")

	_, err = run(t, "", "lookup", "--address", "x", "--parcel", "p-1")
	assert.Error(t, err)
}

func TestLookup_LightBoxWithoutKey(t *testing.T) {
	setupProject(t)
	_, err := run(t, "", "lookup", "--address", "congress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init")
}

// =============================================================================
// config
// =============================================================================

func TestConfig_RedactsKey(t *testing.T) {
	root := setupProject(t)
	t.Setenv("LIGHTBOX_API_KEY", "abcdefghijkl")

	out, err := run(t, "", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "⚡ mapbuilder config")
	assert.Contains(t, out, "****ijkl")
	assert.NotContains(t, out, "abcdefghijkl")
	assert.Contains(t, out, root)
	assert.Contains(t, out, "127.0.0.1:3001")
	assert.Contains(t, out, filepath.Join(root, ".mapbuilder", "cache.db"))
}

func TestConfig_InvalidSettings(t *testing.T) {
	setupProject(t)
	t.Setenv("LOG_LEVEL", "chatty")
	_, err := run(t, "", "config")
	assert.Error(t, err)
}

// =============================================================================
// cache
// =============================================================================

func seedCache(t *testing.T, root string) {
	t.Helper()
	path := filepath.Join(root, ".mapbuilder", "cache.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	store, err := bbolt.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put("zoning", "p-1", []byte(`{"zonings":[]}`)))
	require.NoError(t, store.Put("structures", "p-1", []byte(`{"structures":[]}`)))
	require.NoError(t, store.Put("structures", "p-2", []byte(`{"structures":[]}`)))
	require.NoError(t, store.Close())
}

func TestCache_NoCacheYet(t *testing.T) {
	setupProject(t)

	out, err := run(t, "", "cache", "wipe", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "no cache to wipe")

	out, err = run(t, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "no cache yet")
}

func TestCache_StatsAndWipe(t *testing.T) {
	root := setupProject(t)
	seedCache(t, root)

	out, err := run(t, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "3 cached responses")
	assert.Contains(t, out, "structures")

	out, err = run(t, "n\n", "cache", "wipe")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")

	out, err = run(t, "y\n", "cache", "wipe")
	require.NoError(t, err)
	assert.Contains(t, out, "cache wiped (3 entries)")

	out, err = run(t, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "0 cached responses")
}

// =============================================================================
// helpers
// =============================================================================

func TestIsDBLockError(t *testing.T) {
	assert.False(t, isDBLockError(nil))
	assert.True(t, isDBLockError(errors.New("open cache: bbolt open: timeout")))
	assert.False(t, isDBLockError(errors.New("permission denied")))
}

func TestDiagnoseDBLock(t *testing.T) {
	root := t.TempDir()
	assert.Contains(t, diagnoseDBLock(root), "another process")

	paths := app.NewPaths(root)
	require.NoError(t, paths.EnsureDirs())
	// Port 1 never answers.
	require.NoError(t, os.WriteFile(paths.PortFile, []byte("1"), 0644))
	msg := diagnoseDBLock(root)
	assert.Contains(t, msg, "nothing answers")
	assert.Contains(t, msg, paths.PortFile)
}

func TestFormatArea(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999.4, "999"},
		{1000, "1,000"},
		{1234567.8, "1,234,568"},
		{-500, "-500"},
		{-12500, "-12,500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatArea(tt.in), "%v", tt.in)
	}
}
