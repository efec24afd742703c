//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargohold/internal/auditlog"
	"cargohold/internal/core"
)

// seedLogEntries writes three entries tagged with a backend-specific user so
// the two backend subtests never see each other's data.
func seedLogEntries(t *testing.T, store auditlog.LogStore, userID string) []*auditlog.Entry {
	t.Helper()
	ctx := GetTestContext()

	now := time.Now().UTC()
	entries := []*auditlog.Entry{
		auditlog.NewEntry(core.OpRetrieval, now.Add(-2*time.Hour)),
		auditlog.NewEntry(core.OpPlacement, now.Add(-time.Hour)),
		auditlog.NewEntry(core.OpImport, now),
	}
	entries[0].UserID = userID
	entries[0].ItemID = "int_logItem1"
	entries[0].ContainerID = "int_contA"
	entries[0].Details = map[string]interface{}{"toContainer": "contB"}

	entries[1].UserID = userID
	entries[1].ItemID = "int_logItem2"

	entries[2].UserID = userID
	entries[2].Details = map[string]interface{}{"kind": "items"}

	require.NoError(t, store.WriteBatch(ctx, entries))
	require.NoError(t, store.Flush(ctx))
	return entries
}

func runOperationLogQueries(t *testing.T, store auditlog.LogStore, reader auditlog.Reader, userID string) {
	ctx := GetTestContext()
	seeded := seedLogEntries(t, store, userID)

	// All entries for the user, newest first.
	result, err := reader.GetLogs(ctx, auditlog.LogQueryParams{UserID: userID})
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, core.OpImport, result.Entries[0].Operation)
	assert.Equal(t, core.OpRetrieval, result.Entries[2].Operation)

	// Operation filter.
	result, err = reader.GetLogs(ctx, auditlog.LogQueryParams{
		UserID:    userID,
		Operation: core.OpRetrieval,
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "int_logItem1", result.Entries[0].ItemID)
	assert.Equal(t, "int_contA", result.Entries[0].ContainerID)

	// Item filter.
	result, err = reader.GetLogs(ctx, auditlog.LogQueryParams{
		UserID: userID,
		ItemID: "int_logItem2",
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, core.OpPlacement, result.Entries[0].Operation)

	// Details path match.
	result, err = reader.GetLogs(ctx, auditlog.LogQueryParams{
		UserID:        userID,
		DetailsFilter: "toContainer=contB",
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, core.OpRetrieval, result.Entries[0].Operation)

	// Date window covering only today excludes nothing here, but a window
	// ending yesterday must come back empty.
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	result, err = reader.GetLogs(ctx, auditlog.LogQueryParams{
		UserID: userID,
		QueryParams: auditlog.QueryParams{
			EndDate: yesterday.AddDate(0, 0, -1),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)

	// Pagination keeps the full total.
	result, err = reader.GetLogs(ctx, auditlog.LogQueryParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, 3, result.Total)

	// Single entry lookup.
	entry, err := reader.GetLogByID(ctx, seeded[0].ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, core.OpRetrieval, entry.Operation)
	assert.WithinDuration(t, seeded[0].Timestamp, entry.Timestamp, time.Second)

	entry, err = reader.GetLogByID(ctx, "int_log_missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestPostgreSQLOperationLogs(t *testing.T) {
	store, err := auditlog.NewPostgreSQLStore(GetPostgreSQLPool(), 0)
	require.NoError(t, err, "failed to create operation log store")
	reader, err := auditlog.NewPostgreSQLReader(GetPostgreSQLPool())
	require.NoError(t, err, "failed to create operation log reader")

	runOperationLogQueries(t, store, reader, "int_crew_pg")
}

func TestMongoDBOperationLogs(t *testing.T) {
	store, err := auditlog.NewMongoDBStore(GetMongoDatabase(), 0)
	require.NoError(t, err, "failed to create operation log store")
	reader, err := auditlog.NewMongoDBReader(GetMongoDatabase())
	require.NoError(t, err, "failed to create operation log reader")

	runOperationLogQueries(t, store, reader, "int_crew_mongo")
}
