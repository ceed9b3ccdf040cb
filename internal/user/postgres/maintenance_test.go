package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	userPostgres "github.com/RenerPires/cfp-energy-technical-test-backend/internal/user/postgres"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Maintenance Repository", func() {
	var (
		db   *sqlx.DB
		mock sqlmock.Sqlmock
		repo *userPostgres.MaintenanceRepository
	)

	BeforeEach(func() {
		raw, m, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())

		db = sqlx.NewDb(raw, "pgx")
		mock = m
		repo = userPostgres.NewMaintenanceRepository(db)
	})

	AfterEach(func() {
		mock.ExpectClose()
		Expect(db.Close()).To(Succeed())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("returns inactive accounts at or before the cutoff", func() {
		cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		inactivated := cutoff.Add(-48 * time.Hour)

		mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
			WithArgs(cutoff).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "inactivated_at"}).
				AddRow("u-1", "alice@x.com", "alice", inactivated))

		accounts, err := repo.FindStaleInactive(context.Background(), cutoff)
		Expect(err).NotTo(HaveOccurred())
		Expect(accounts).To(HaveLen(1))
		Expect(accounts[0].ID).To(Equal("u-1"))
		Expect(accounts[0].InactivatedAt).To(Equal(inactivated))
	})

	It("wraps query failures", func() {
		mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.FindStaleInactive(context.Background(), time.Now())
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
	})
})
