package database

import (
	"context"
	"testing"

	"github.com/fernlabour/labour-actor/pkg/database"
	"github.com/fernlabour/labour-actor/test/util"
	"github.com/stretchr/testify/require"
)

// SharedTestDB creates a single PostgreSQL schema that can be shared by
// multiple test replicas. Each replica gets its own connection pool via
// NewClient, but all pools point to the same schema. This lets a test spin
// up several independent *actor.Host-like components (one per simulated
// process) against one store, the way a projector/process-manager
// concurrency test needs, without each replica fighting over migrations.
type SharedTestDB struct {
	connStrWithSchema string
	baseConnStr       string
	schemaName        string
}

// NewSharedTestDB creates a shared test schema, runs migrations once, and
// registers t.Cleanup to drop the schema. Call NewClient to create
// independent database clients for each replica.
func NewSharedTestDB(t *testing.T) *SharedTestDB {
	t.Helper()

	baseConnStr := util.GetBaseConnectionString(t)
	schemaName := util.GenerateSchemaName(t)

	util.CreateSchema(t, baseConnStr, schemaName)
	connStrWithSchema := util.AddSearchPathToConnString(baseConnStr, schemaName)

	// Run migrations once via a throwaway client; every replica's client
	// reuses the same already-migrated schema.
	ctx := context.Background()
	bootstrap, err := database.NewClientFromDSN(ctx, connStrWithSchema)
	require.NoError(t, err)
	bootstrap.Close()

	s := &SharedTestDB{
		connStrWithSchema: connStrWithSchema,
		baseConnStr:       baseConnStr,
		schemaName:        schemaName,
	}

	// Drop the schema after all replicas have shut down (LIFO order
	// guarantees replica cleanups run before this one).
	t.Cleanup(func() {
		util.DropSchema(t, baseConnStr, schemaName)
	})

	return s
}

// NewClient creates an independent *database.Client backed by a fresh
// connection pool to the shared schema. Each client has its own pool so
// replicas can be shut down independently without races. The migration run
// this triggers is a no-op against the already-migrated schema.
func (s *SharedTestDB) NewClient(t *testing.T) *database.Client {
	t.Helper()

	client, err := database.NewClientFromDSN(context.Background(), s.connStrWithSchema)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
	})

	return client
}
