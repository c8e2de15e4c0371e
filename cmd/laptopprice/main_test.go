package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gmux "github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptop-price-predictor/internal/features"
)

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--api-url", srv.URL, "--timeout", "2s"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestPredictCommand(t *testing.T) {
	var got map[string]any
	mux := gmux.NewRouter()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respond(w, http.StatusOK, map[string]interface{}{
			"prediction_id":   "id-1",
			"predicted_price": 55578.05,
			"price_formatted": "₹55,578.05",
		})
	}).Methods("POST")
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "predict", "--company", "Dell", "--type", "Notebook", "--ram", "8",
		"--weight", "2.2", "--ips", "--ppi", "141.2", "--cpu", "Intel Core i5", "--ssd", "256",
		"--gpu", "Intel", "--os", "Windows")
	require.NoError(t, err)
	assert.Contains(t, out, "₹55,578.05")
	assert.Contains(t, out, "id-1")

	assert.Equal(t, "Dell", got[features.FieldCompany])
	assert.Equal(t, 8.0, got[features.FieldRAM])
	assert.Equal(t, 1.0, got[features.FieldIPS])
	assert.Equal(t, 0.0, got[features.FieldTouchscreen])
}

func TestPredictCommand_ServerRejects(t *testing.T) {
	mux := gmux.NewRouter()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"detail":     "invalid laptop features",
			"violations": []map[string]string{{"field": "company", "message": "field required"}},
		})
	}).Methods("POST")
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := run(t, srv, "predict", "--ram", "8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company: field required")
}

func TestLaptopFlags_Payload(t *testing.T) {
	f := &laptopFlags{company: "HP", ram: 16, touchscreen: true}
	p, err := f.payload()
	require.NoError(t, err)
	assert.Equal(t, "HP", p[features.FieldCompany])
	assert.Equal(t, 1, p[features.FieldTouchscreen])
	assert.NotContains(t, p, features.FieldOS)

	f = &laptopFlags{jsonInput: `{"company":"Apple"}`}
	p, err = f.payload()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"company": "Apple"}, p)

	f = &laptopFlags{jsonInput: `{`}
	_, err = f.payload()
	assert.Error(t, err)
}

func TestHistoryAndStatsCommands(t *testing.T) {
	mux := gmux.NewRouter()
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		respond(w, http.StatusOK, []map[string]interface{}{{
			"prediction_id":   "id-9",
			"input_features":  map[string]interface{}{"company": "Asus", "type_name": "Gaming", "ram": 16},
			"price_formatted": "₹98,000.00",
			"timestamp":       time.Now().Add(-time.Hour),
		}})
	}).Methods("GET")
	mux.HandleFunc("/api/v1/admin/stats/count", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]int{"total_predictions": 1200})
	}).Methods("GET")
	mux.HandleFunc("/api/v1/admin/stats/price", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]float64{"avg_price": 60000, "min_price": 20000, "max_price": 150000})
	}).Methods("GET")
	mux.HandleFunc("/api/v1/admin/stats/companies", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, []map[string]interface{}{{"company": "Asus", "count": 1200, "avg_price": 60000.0}})
	}).Methods("GET")
	mux.HandleFunc("/cache", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]string{"message": "Prediction cache cleared successfully"})
	}).Methods("DELETE")
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "history", "-n", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Asus")
	assert.Contains(t, out, "₹98,000.00")
	assert.Contains(t, out, "1 hour ago")

	out, err = run(t, srv, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "₹60,000")
	assert.Contains(t, out, "₹150,000.00")

	out, err = run(t, srv, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Prediction cache cleared successfully")
}

func TestGetCommand_RequiresID(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := run(t, srv, "get")
	assert.Error(t, err)
}
