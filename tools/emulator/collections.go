package emulator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/raywall/decoy/collection"
	"github.com/raywall/decoy/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// closer libera os recursos de uma coleção (conexões com banco ou Redis).
type closer func() error

// newCollection cria a coleção descrita em cc. O closer devolvido nunca é nil.
func newCollection(ctx context.Context, cc config.CollectionConf, logger zerolog.Logger) (*collection.Collection, closer, error) {
	records := make([]collection.Record, len(cc.Records))
	for i, r := range cc.Records {
		records[i] = collection.Record(r)
	}

	opts := []collection.Option{
		collection.WithLogger(logger.With().Str("collection", cc.Name).Logger()),
	}
	if cc.Identity != "" {
		opts = append(opts, collection.WithIdentity(cc.Identity))
	}
	if cc.None != nil {
		opts = append(opts, collection.WithNone(cc.None))
	}

	noop := func() error { return nil }

	switch cc.BackendKind() {
	case config.KindMemory:
		return collection.NewArrayCollection(records, opts...), noop, nil

	case config.KindSQLite, config.KindPostgres:
		db, err := openDB(ctx, cc)
		if err != nil {
			return nil, noop, err
		}
		dialect := collection.DialectSQLite
		if cc.BackendKind() == config.KindPostgres {
			dialect = collection.DialectPostgres
		}
		coll, err := collection.NewSQLCollection(collection.SQLConfig{
			DB:       db,
			Table:    cc.Table,
			Dialect:  dialect,
			Identity: cc.Identity,
			Records:  records,
		}, opts...)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return coll, db.Close, nil

	case config.KindRedis:
		client := redis.NewClient(&redis.Options{Addr: cc.Addr})
		prefix := cc.Prefix
		if prefix == "" {
			prefix = "decoy:" + cc.Name
		}
		coll, err := collection.NewRedisCollection(collection.RedisConfig{
			Client:   client,
			Prefix:   prefix,
			Identity: cc.Identity,
			Records:  records,
		}, opts...)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return coll, client.Close, nil
	}

	return nil, noop, fmt.Errorf("tipo de coleção desconhecido: '%s'", cc.Kind)
}

// openDB abre a conexão e executa o schema, quando informado. Sem DSN, o
// sqlite usa um banco em memória.
func openDB(ctx context.Context, cc config.CollectionConf) (*sql.DB, error) {
	driver, dsn := "sqlite", cc.DSN
	if cc.BackendKind() == config.KindPostgres {
		driver = "postgres"
	}
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("falha ao abrir banco da coleção '%s': %w", cc.Name, err)
	}
	if dsn == ":memory:" {
		// cada conexão :memory: é um banco distinto
		db.SetMaxOpenConns(1)
	}

	if cc.Schema != "" {
		if _, err := db.ExecContext(ctx, cc.Schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("falha ao aplicar schema da coleção '%s': %w", cc.Name, err)
		}
	}
	return db, nil
}
