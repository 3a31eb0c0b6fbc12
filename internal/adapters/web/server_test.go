package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corey/mapbuilder/internal/adapters/lightbox"
	"github.com/corey/mapbuilder/internal/domain/buildable"
	"github.com/corey/mapbuilder/internal/logging"
	"github.com/corey/mapbuilder/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Parcel API: proxy routes, buildable routes, error envelope, middleware
// Expectation: upstream bodies pass through untouched, errors map to
// 400/404/502/500 with the shared envelope, every response has a request id
// =============================================================================

// fakeProvider returns canned payloads and records the last query.
type fakeProvider struct {
	err       error
	lastQuery ports.GeometryQuery
	lastText  string
	lastID    string
}

func (f *fakeProvider) ParcelsByGeometry(_ context.Context, q ports.GeometryQuery) (*ports.ParcelCollection, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return ports.DecodeParcels([]byte(`{"parcels":[{"id":"p-1"}],"metadata":{"upstream":true}}`))
}

func (f *fakeProvider) ParcelsByAddress(_ context.Context, text string) (*ports.ParcelCollection, error) {
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return ports.DecodeParcels([]byte(`{"parcels":[]}`))
}

func (f *fakeProvider) StructuresByParcel(_ context.Context, id string) (*ports.StructureCollection, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return ports.DecodeStructures([]byte(`{"structures":[{"id":"s-1"}]}`))
}

func (f *fakeProvider) ZoningByParcel(_ context.Context, id string) (*ports.ZoningCollection, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return ports.DecodeZonings([]byte(`{"zonings":[{"code":"SF-3"}]}`))
}

// fakeBackend wires the fake provider to the real calculator.
type fakeBackend struct {
	provider   *fakeProvider
	lastParcel ports.Parcel
	assessErr  error
}

func (b *fakeBackend) Provider() ports.ParcelProvider { return b.provider }
func (b *fakeBackend) ProviderName() string           { return "fake" }

func (b *fakeBackend) AssessParcel(_ context.Context, p ports.Parcel) (*buildable.Assessment, error) {
	b.lastParcel = p
	if b.assessErr != nil {
		return nil, b.assessErr
	}
	return &buildable.Assessment{ParcelID: p.ID, IsEmpty: false, StructureCount: 1}, nil
}

func (b *fakeBackend) Estimate(in *buildable.ParcelInput) (*buildable.Report, error) {
	return buildable.Compute(in)
}

func setupTestServer(t *testing.T) (*httptest.Server, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{provider: &fakeProvider{}}
	srv := NewServer(backend, Options{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, backend
}

func decodeError(t *testing.T, resp *http.Response) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var h HealthResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "fake", h.Provider)
}

func TestParcelsByGeometry_Proxy(t *testing.T) {
	ts, backend := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/parcels/geometry", "application/json",
		strings.NewReader(`{"wkt":"POINT (-97.7 30.2)"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"parcels":[{"id":"p-1"}],"metadata":{"upstream":true}}`, string(body), "upstream body passes through")
	assert.Equal(t, ports.GeometryQuery{WKT: "POINT (-97.7 30.2)", BufferDistance: ports.Distance(50), BufferUnit: "m"}, backend.provider.lastQuery)
}

func TestParcelsByGeometry_ZeroBufferKept(t *testing.T) {
	ts, backend := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/parcels/geometry", "application/json",
		strings.NewReader(`{"wkt":"POINT (-97.7 30.2)","bufferDistance":0}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	require.NotNil(t, backend.provider.lastQuery.BufferDistance)
	assert.Equal(t, 0.0, backend.provider.lastQuery.Buffer())
	assert.Equal(t, "m", backend.provider.lastQuery.BufferUnit)
}

func TestParcelsByGeometry_BadRequests(t *testing.T) {
	ts, _ := setupTestServer(t)

	for _, body := range []string{`{"wkt":""}`, `{"wkt":`, `[]`} {
		resp, err := http.Post(ts.URL+"/api/parcels/geometry", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode, body)
		assert.Equal(t, "Invalid request", decodeError(t, resp).Message)
		resp.Body.Close()
	}
}

func TestParcelsByAddress_Proxy(t *testing.T) {
	ts, backend := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/parcels/address?text=100+Congress+Ave")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "100 Congress Ave", backend.provider.lastText)

	resp2, err := http.Get(ts.URL + "/api/parcels/address")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, 400, resp2.StatusCode)
}

func TestStructuresAndZoning_Proxy(t *testing.T) {
	ts, backend := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/structures/parcel/abc-123")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"structures":[{"id":"s-1"}]}`, string(body))
	assert.Equal(t, "abc-123", backend.provider.lastID)

	resp, err = http.Get(ts.URL + "/api/zoning/parcel/xyz")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"zonings":[{"code":"SF-3"}]}`, string(body))
	assert.Equal(t, "xyz", backend.provider.lastID)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		details any
	}{
		{"upstream error", &lightbox.APIError{Operation: "zoning", Status: 401, Body: `{"message":"Invalid API key"}`}, 502, "Something went wrong!", map[string]any{"message": "Invalid API key"}},
		{"upstream text error", &lightbox.APIError{Operation: "zoning", Status: 503, Body: "down"}, 502, "Something went wrong!", "down"},
		{"upstream 404", &lightbox.APIError{Operation: "zoning", Status: 404}, 404, "Not found", nil},
		{"wrapped not found", fmt.Errorf("parcel %q: %w", "x", ports.ErrNotFound), 404, "Not found", nil},
		{"anything else", fmt.Errorf("boom"), 500, "Something went wrong!", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, backend := setupTestServer(t)
			backend.provider.err = tt.err

			resp, err := http.Get(ts.URL + "/api/zoning/parcel/p-1")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, tt.err.Error(), body.Error)
			assert.Equal(t, tt.details, body.Details)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestAssessRoute(t *testing.T) {
	ts, backend := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/buildable/parcel/p-7?lotArea=7405.5&wkt=POLYGON+((0+0,1+0,1+1,0+0))")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	assert.Equal(t, "p-7", backend.lastParcel.ID)
	assert.Equal(t, 7405.5, backend.lastParcel.Derived.CalculatedLotArea)
	assert.Equal(t, "POLYGON ((0 0,1 0,1 1,0 0))", backend.lastParcel.Geometry.WKT)

	var a buildable.Assessment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&a))
	assert.Equal(t, "p-7", a.ParcelID)

	resp2, err := http.Get(ts.URL + "/api/buildable/parcel/p-7?lotArea=big")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, 400, resp2.StatusCode)
}

func TestAssessRoute_MissingInput(t *testing.T) {
	ts, backend := setupTestServer(t)
	backend.assessErr = &buildable.MissingInputError{Field: "lotAreaSquareFeet"}

	resp, err := http.Get(ts.URL + "/api/buildable/parcel/p-7")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, map[string]any{"field": "lotAreaSquareFeet"}, decodeError(t, resp).Details)
}

func TestEstimateRoute(t *testing.T) {
	ts, _ := setupTestServer(t)

	in := `{"lotAreaSquareFeet":10000,"zoning":{"frontSetback":"10 feet","rearSetback":"10 feet","sideSetback":"10 feet","maxHeight":"35 feet","far":0.5}}`
	resp, err := http.Post(ts.URL+"/api/buildable", "application/json", strings.NewReader(in))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var out struct {
		BuildableArea map[string]any `json:"buildableArea"`
		Warnings      []string       `json:"warnings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 6000.0, out.BuildableArea["buildableFootprint"])
	assert.Equal(t, 5000.0, out.BuildableArea["maxBuildableArea"])
	assert.Empty(t, out.Warnings)
}

func TestEstimateRoute_Errors(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/buildable", "application/json", strings.NewReader(`{"lotAreaSquareFeet":10000}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, map[string]any{"field": "zoning"}, decodeError(t, resp).Details)

	resp2, err := http.Post(ts.URL+"/api/buildable", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, 400, resp2.StatusCode)
}

func TestEstimateRoute_NegativeFootprintWarns(t *testing.T) {
	ts, _ := setupTestServer(t)

	in := `{"lotAreaSquareFeet":400,"zoning":{"frontSetback":"10","rearSetback":"10","sideSetback":"10","far":1}}`
	resp, err := http.Post(ts.URL+"/api/buildable", "application/json", strings.NewReader(in))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out EstimateResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	// 400 - (20*20 + 20*20)
	assert.Equal(t, -400.0, out.BuildableArea.BuildableFootprint)
	assert.Equal(t, []string{buildable.WarnFootprintNegative}, out.Warnings)
}

func TestRequestID(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	id := resp.Header.Get(RequestIDHeader)
	assert.True(t, strings.HasPrefix(id, "REQ-"), id)
	assert.Len(t, id, len("REQ-")+12)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set(RequestIDHeader, "client-abc")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "client-abc", resp.Header.Get(RequestIDHeader), "inbound id is reused")
}

func TestCORS(t *testing.T) {
	ts, _ := setupTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	pre, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/parcels/geometry", nil)
	pre.Header.Set("Origin", "http://localhost:3000")
	pre.Header.Set("Access-Control-Request-Method", "POST")
	resp, err = http.DefaultClient.Do(pre)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Less(t, resp.StatusCode, 300, "preflight succeeds")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_RestrictedOrigin(t *testing.T) {
	srv := NewServer(&fakeBackend{provider: &fakeProvider{}}, Options{AllowedOrigin: "https://app.example.com"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthCounters(t *testing.T) {
	ts, backend := setupTestServer(t)
	backend.provider.err = fmt.Errorf("boom")

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/api/zoning/parcel/p")
		require.NoError(t, err)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var h HealthResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, int64(2), h.Requests, "health counts requests finished before it")
	assert.Equal(t, int64(2), h.Failures)
}

func TestServer_StartStop(t *testing.T) {
	portFile := t.TempDir() + "/http.port"
	srv := NewServer(&fakeBackend{provider: &fakeProvider{}}, Options{PortFile: portFile})
	require.NoError(t, srv.Start("127.0.0.1", 0))
	assert.NotZero(t, srv.Port())

	resp, err := http.Get(srv.URL() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.FileExists(t, portFile)

	srv.Stop()
	srv.Stop()
	assert.NoFileExists(t, portFile)
}

func TestServer_PortFileFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	portFile := t.TempDir() + "/missing/http.port"
	srv := NewServer(&fakeBackend{provider: &fakeProvider{}}, Options{
		PortFile: portFile,
		Logger:   logging.NewWithWriter(&logs, "warn"),
	})
	require.NoError(t, srv.Start("127.0.0.1", 0), "serving does not depend on the port file")
	defer srv.Stop()

	assert.NoFileExists(t, portFile)
	assert.Contains(t, logs.String(), "port file not written")
	assert.Contains(t, logs.String(), portFile)
}

func TestNaNReportIsValidJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, 200, EstimateResult{BuildableArea: &buildable.Report{LotSize: 1, FAR: math.NaN(), MaxBuildableArea: math.NaN()}})

	var m map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Nil(t, m["buildableArea"]["far"])
}
