package neo4j

import (
	"context"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// runner runs one statement inside a transaction and collects its records.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]*neo4jdrv.Record, error)
}

// executor runs managed read and write transactions.
type executor interface {
	Write(ctx context.Context, fn func(tx runner) error) error
	Read(ctx context.Context, fn func(tx runner) error) error
}

type driverExecutor struct {
	driver   neo4jdrv.DriverWithContext
	database string
}

type managedRunner struct {
	tx neo4jdrv.ManagedTransaction
}

func (r managedRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]*neo4jdrv.Record, error) {
	res, err := r.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}

func (e *driverExecutor) session(ctx context.Context, mode neo4jdrv.AccessMode) neo4jdrv.SessionWithContext {
	return e.driver.NewSession(ctx, neo4jdrv.SessionConfig{
		AccessMode:   mode,
		DatabaseName: e.database,
	})
}

func (e *driverExecutor) Write(ctx context.Context, fn func(tx runner) error) error {
	session := e.session(ctx, neo4jdrv.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		return nil, fn(managedRunner{tx: tx})
	})
	return err
}

func (e *driverExecutor) Read(ctx context.Context, fn func(tx runner) error) error {
	session := e.session(ctx, neo4jdrv.AccessModeRead)
	defer session.Close(ctx)

	_, err := session.ExecuteRead(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		return nil, fn(managedRunner{tx: tx})
	})
	return err
}
