package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"github.com/DATA-DOG/go-sqlmock"
	directoryPostgres "github.com/frahmantamala/santega-authz/internal/directory/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ConfigureChannel", func() {
	var (
		db   *sql.DB
		mock sqlmock.Sqlmock
	)

	BeforeEach(func() {
		var err error
		db, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = db.Close() })
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("stores the configured channel for the notify triggers", func() {
		mock.ExpectExec("INSERT INTO directory_notify_settings").
			WithArgs("staging_affiliations").
			WillReturnResult(sqlmock.NewResult(0, 1))

		Expect(directoryPostgres.ConfigureChannel(context.Background(), db, "staging_affiliations")).To(Succeed())
	})

	It("falls back to the default channel", func() {
		mock.ExpectExec("INSERT INTO directory_notify_settings").
			WithArgs(directoryPostgres.DefaultChannel).
			WillReturnResult(sqlmock.NewResult(0, 1))

		Expect(directoryPostgres.ConfigureChannel(context.Background(), db, "")).To(Succeed())
	})

	It("wraps driver errors", func() {
		cause := errors.New("permission denied")
		mock.ExpectExec("INSERT INTO directory_notify_settings").WillReturnError(cause)

		err := directoryPostgres.ConfigureChannel(context.Background(), db, "x")
		Expect(err).To(MatchError(ContainSubstring("configure notify channel")))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})
})

var _ = Describe("notify migrations", func() {
	It("read the channel from the settings table seeded with the default", func() {
		raw, err := os.ReadFile(filepath.Join("..", "..", "..", "db", "migrations", "20250101000004_affiliation_channel_setting.sql"))
		Expect(err).NotTo(HaveOccurred())
		body := string(raw)

		Expect(body).To(ContainSubstring("directory_notify_settings"))
		Expect(body).To(ContainSubstring("'" + directoryPostgres.DefaultChannel + "'"))
		Expect(body).To(ContainSubstring("pg_notify(affiliation_change_channel(), pid)"))
		Expect(body).To(ContainSubstring("AFTER UPDATE ON establishments"))
	})
})
