package badger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

const (
	nodePrefix = "node/"
	edgePrefix = "edge/"
)

// Store is an embedded graph backend on top of BadgerDB. Nodes are stored
// under node/<id> and edges under edge/<source>\x00<target>\x00<type>, both
// as JSON.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

var _ store.GraphStorage = (*Store)(nil)

type badgerLogger struct{}

func (badgerLogger) Errorf(msg string, args ...any) {
	logger.Error(strings.TrimSpace(fmt.Sprintf(msg, args...)))
}

func (badgerLogger) Warningf(msg string, args ...any) {
	logger.Warn(strings.TrimSpace(fmt.Sprintf(msg, args...)))
}

func (badgerLogger) Infof(msg string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, args...)))
}

func (badgerLogger) Debugf(msg string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, args...)))
}

// Open opens the database at path, creating the directory when needed. An
// empty path opens an in-memory database.
func Open(path string) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create graph directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = badgerLogger{}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &store.BackendError{
			Kind:    store.BackendUnavailable,
			Message: "嵌入式图数据库无法打开，请检查 BADGER_PATH 配置",
			Err:     err,
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

func nodeKey(id string) []byte {
	return []byte(nodePrefix + id)
}

func edgeKey(source, target, relType string) []byte {
	return []byte(edgePrefix + source + "\x00" + target + "\x00" + relType)
}
