// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/accountd/internal/account"
	pgaccount "github.com/holomush/accountd/internal/account/postgres"
	"github.com/holomush/accountd/internal/store"
)

// setupPostgres starts a PostgreSQL container, connects, and migrates it.
func setupPostgres() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("accountd_test"),
		postgres.WithUsername("accountd"),
		postgres.WithPassword("accountd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	pool, err := store.Connect(ctx, store.ConnectConfig{
		URL:     connStr,
		Retries: 3,
		Backoff: 100 * time.Millisecond,
	}, nil)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, cleanup, nil
}

// plainHasher keeps concurrent registrations cheap.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "plain$" + p, nil }

func (plainHasher) Verify(p, h string) (bool, error) { return h == "plain$"+p, nil }

func (plainHasher) NeedsUpgrade(string) bool { return false }

var _ = Describe("PostgreSQL account storage", Ordered, func() {
	var (
		pool    *pgxpool.Pool
		cleanup func()
		accts   *account.Store
	)

	BeforeAll(func() {
		var err error
		pool, cleanup, err = setupPostgres()
		Expect(err).NotTo(HaveOccurred())

		accts, err = account.NewStore(pgaccount.NewAccountRepository(pool), plainHasher{})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if cleanup != nil {
			cleanup()
		}
	})

	It("creates and finds an account", func() {
		ctx := context.Background()
		acct, err := accts.Create(ctx, "bob", "Bob@X.com", "pw1")
		Expect(err).NotTo(HaveOccurred())
		Expect(acct.Email).To(Equal("bob@x.com"))

		id, found, err := accts.FindByCredentials(ctx, "bob", "pw1")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(id).To(Equal(acct.ID))
	})

	It("reports which unique constraint collided", func() {
		ctx := context.Background()

		_, err := accts.Create(ctx, "bob", "other@x.com", "pw2")
		Expect(errors.Is(err, account.ErrConflict)).To(BeTrue())
		Expect(pgFieldOf(err)).To(Equal(account.FieldUsername))

		_, err = accts.Create(ctx, "bob2", "BOB@x.com", "pw2")
		Expect(errors.Is(err, account.ErrConflict)).To(BeTrue())
		Expect(pgFieldOf(err)).To(Equal(account.FieldEmail))
	})

	It("rejects non-lowercase emails written around the store", func() {
		_, err := pool.Exec(context.Background(),
			`INSERT INTO accounts (id, username, email, credential_hash) VALUES ('x', 'mixed', 'Mixed@X.com', 'h')`)
		Expect(err).To(HaveOccurred())
	})

	It("deletes idempotently", func() {
		ctx := context.Background()
		Expect(accts.Delete(ctx, "bob")).To(Succeed())
		Expect(accts.Delete(ctx, "bob")).To(Succeed())
		Expect(accts.Delete(ctx, "ghost")).To(Succeed())

		_, found, err := accts.FindByCredentials(ctx, "bob", "pw1")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("allows exactly one of many concurrent registrations", func() {
		ctx := context.Background()
		const workers = 8

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				_, err := accts.Create(ctx, "racer", "racer"+string(rune('a'+i))+"@x.com", "pw")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, account.ErrConflict):
					conflicts++
				default:
					Fail("unexpected error: " + err.Error())
				}
			}(i)
		}
		wg.Wait()

		Expect(successes).To(Equal(1))
		Expect(conflicts).To(Equal(workers - 1))
	})

	It("answers pings", func() {
		Expect(accts.Ping(context.Background())).To(Succeed())
	})
})

func pgFieldOf(err error) string {
	var ve interface{ Context() map[string]any }
	if errors.As(err, &ve) {
		if f, ok := ve.Context()["field"].(string); ok {
			return f
		}
	}
	return ""
}
