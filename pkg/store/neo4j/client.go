package neo4j

import (
	"context"
	"fmt"
	"sync"
	"time"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

// Store is the Neo4j graph backend. Entities are (:Entity) nodes keyed by
// id; relations are [:RELATION {type}] edges between them.
type Store struct {
	exec executor
	now  func() time.Time

	mu       sync.Mutex
	strategy Strategy
	closeFn  func(ctx context.Context) error
}

var _ store.GraphStorage = (*Store)(nil)

// Config holds the connection settings.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
	MaxPool  int
}

// ConfigFromEnv reads NEO4J_* variables.
func ConfigFromEnv() Config {
	return Config{
		URI:      util.GetEnvString("NEO4J_URI", "bolt://localhost:7687"),
		User:     util.GetEnvString("NEO4J_USER", "neo4j"),
		Password: util.GetEnv("NEO4J_PASSWORD"),
		Database: util.GetEnv("NEO4J_DATABASE"),
		Timeout:  util.GetEnvSeconds("NEO4J_TIMEOUT_SECONDS", 10),
		MaxPool:  util.GetEnvInt("NEO4J_MAX_POOL_SIZE", 50),
	}
}

// Open connects to Neo4j, verifies connectivity and ensures the id
// constraint exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4jdrv.NewDriverWithContext(cfg.URI, neo4jdrv.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4jdrv.Config) {
		if cfg.MaxPool > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPool
		}
		if cfg.Timeout > 0 {
			c.SocketConnectTimeout = cfg.Timeout
		}
	})
	if err != nil {
		return nil, classify(fmt.Errorf("init driver: %w", err))
	}

	verifyCtx, cancel := context.WithTimeout(ctx, max(cfg.Timeout, time.Second))
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, classify(err)
	}

	s := New(&driverExecutor{driver: driver, database: cfg.Database})
	s.closeFn = driver.Close
	s.ensureSchema(ctx)
	return s, nil
}

// New builds a store on top of an executor. The strategy is chosen on the
// first write.
func New(exec executor) *Store {
	return &Store{exec: exec, now: time.Now}
}

func (s *Store) Close(ctx context.Context) error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) {
	stmts := []string{
		`CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (n:Entity) REQUIRE n.id IS UNIQUE`,
		`CREATE INDEX entity_name IF NOT EXISTS FOR (n:Entity) ON (n.name)`,
		`CREATE INDEX entity_type IF NOT EXISTS FOR (n:Entity) ON (n.type)`,
	}
	for _, q := range stmts {
		err := s.exec.Write(ctx, func(tx runner) error {
			_, err := tx.Run(ctx, q, nil)
			return err
		})
		if err != nil {
			logger.Warn("[Neo4j] Neo4j schema init failed (continuing)", "err", err)
		}
	}
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
