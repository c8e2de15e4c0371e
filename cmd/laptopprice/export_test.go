package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptop-price-predictor/internal/common"
	"laptop-price-predictor/internal/features"
	"laptop-price-predictor/internal/storage"
)

func seededRepo(t *testing.T) storage.Repository {
	t.Helper()
	repo, err := storage.Open(common.StoreDriverSQLite, t.TempDir(), "predictions")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	now := time.Now().UTC()
	for _, rec := range []storage.Record{
		{PredictionID: "old", InputFeatures: features.FeatureRecord{Company: "HP", RAM: 4}, OutputPrediction: 25000, Timestamp: now.AddDate(0, 0, -40)},
		{PredictionID: "dell", InputFeatures: features.FeatureRecord{Company: "Dell", RAM: 8, Weight: 2.2}, OutputPrediction: 55578.05, Timestamp: now.Add(-time.Hour)},
		{PredictionID: "hp", InputFeatures: features.FeatureRecord{Company: "HP", RAM: 16}, OutputPrediction: 70000, Timestamp: now},
	} {
		_, err := repo.Insert(context.Background(), rec)
		require.NoError(t, err)
	}
	return repo
}

func TestLoadForExport(t *testing.T) {
	repo := seededRepo(t)
	ctx := context.Background()

	all, err := loadForExport(ctx, repo, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	recent, err := loadForExport(ctx, repo, "", 30)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "hp", recent[0].PredictionID)

	hp, err := loadForExport(ctx, repo, "HP", 0)
	require.NoError(t, err)
	assert.Len(t, hp, 2)
}

func TestWriteExport(t *testing.T) {
	repo := seededRepo(t)
	records, err := loadForExport(context.Background(), repo, "Dell", 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeExport(&buf, records, formatJSONL))
	var rec storage.Record
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "dell", rec.PredictionID)

	buf.Reset()
	require.NoError(t, writeExport(&buf, records, formatCSV))
	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "dell", rows[1][0])
	assert.Equal(t, "Dell", rows[1][2])
	assert.Equal(t, "2.2", rows[1][5])
	assert.Equal(t, "55578.05", rows[1][14])
}
