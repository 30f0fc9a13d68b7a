package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/diarysync/internal/client/migrations"
	"github.com/dmitrijs2005/diarysync/internal/client/repositories/entries"
	"github.com/dmitrijs2005/diarysync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/diarysync/internal/cryptox"
	"github.com/dmitrijs2005/diarysync/internal/dbx"

	_ "modernc.org/sqlite"
)

// checkPlaintext is sealed with the derived key and stored so a wrong
// passphrase is detected before any entry is read.
var checkPlaintext = []byte("diarysync")

type Repositories struct {
	DB       *sql.DB
	Entries  entries.Repository
	Metadata metadata.Repository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

// DSN builds a modernc.org/sqlite data source name with the pragmas the
// journal relies on for durable writes.
func DSN(path string) string {
	return "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(FULL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrations.Up(ctx, db)
}

// InitDatabase opens the journal at path and applies migrations. With a
// non-empty passphrase, entry content is sealed at rest.
func InitDatabase(ctx context.Context, path string, passphrase []byte) (*Repositories, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cipher, err := loadCipher(ctx, db, passphrase)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var opts []entries.Option
	if cipher != nil {
		opts = append(opts, entries.WithCipher(cipher))
	}

	return &Repositories{
		DB:       db,
		Entries:  entries.NewSQLiteRepository(db, opts...),
		Metadata: metadata.NewSQLiteRepository(db),
	}, nil
}

func loadCipher(ctx context.Context, db *sql.DB, passphrase []byte) (*cryptox.Sealer, error) {
	return dbx.WithTxResult(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) (*cryptox.Sealer, error) {
		meta := metadata.NewSQLiteRepository(tx)

		salt, err := meta.Get(ctx, metadata.KeySalt)
		if err != nil {
			return nil, err
		}

		if len(passphrase) == 0 {
			if salt != nil {
				return nil, ErrPassphraseRequired
			}
			return nil, nil
		}

		if salt == nil {
			existing, err := entries.NewSQLiteRepository(tx).List(ctx)
			if err != nil {
				return nil, err
			}
			if len(existing) > 0 {
				return nil, ErrJournalNotEncrypted
			}
			return newCipher(ctx, meta, passphrase)
		}

		s, err := cryptox.NewSealer(cryptox.DeriveKey(passphrase, salt))
		if err != nil {
			return nil, err
		}
		check, err := meta.Get(ctx, metadata.KeyCheck)
		if err != nil {
			return nil, err
		}
		got, err := s.Open(check)
		if err != nil || string(got) != string(checkPlaintext) {
			return nil, ErrWrongPassphrase
		}
		return s, nil
	})
}

func newCipher(ctx context.Context, meta metadata.Repository, passphrase []byte) (*cryptox.Sealer, error) {
	salt, err := cryptox.NewSalt()
	if err != nil {
		return nil, err
	}
	s, err := cryptox.NewSealer(cryptox.DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	check, err := s.Seal(checkPlaintext)
	if err != nil {
		return nil, err
	}
	if err := meta.Set(ctx, metadata.KeySalt, salt); err != nil {
		return nil, err
	}
	if err := meta.Set(ctx, metadata.KeyCheck, check); err != nil {
		return nil, err
	}
	return s, nil
}
