package user_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	userDatamodel "github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/datamodel/user"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/security"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/user"
	userPostgres "github.com/RenerPires/cfp-energy-technical-test-backend/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

const testPassword = "Secr3t!pass"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	Expect(err).NotTo(HaveOccurred())

	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	sqlDB.SetMaxOpenConns(1)

	Expect(db.AutoMigrate(userDatamodel.Models()...)).To(Succeed())
	Expect(userPostgres.SeedAccessControl(context.Background(), db)).To(Succeed())
	return db
}

func newHasher() security.PasswordHasher {
	return security.NewBcryptHasher(4)
}

func registerDTO(name string) user.RegisterDTO {
	return user.RegisterDTO{
		FirstName:            "Test",
		LastName:             "Person",
		Username:             name,
		Email:                name + "@x.com",
		Password:             testPassword,
		PasswordConfirmation: testPassword,
	}
}

// seedAdmin creates an account holding the admin role and returns its principal.
func seedAdmin(db *gorm.DB, repo user.RepositoryAPI, hasher security.PasswordHasher, name string) *authz.Principal {
	hash, err := hasher.Hash(testPassword)
	Expect(err).NotTo(HaveOccurred())

	created, err := userPostgres.SeedAdmin(context.Background(), db, userPostgres.AdminSeed{
		Email:        name + "@x.com",
		Username:     name,
		PasswordHash: hash,
	}, time.Now())
	Expect(err).NotTo(HaveOccurred())
	Expect(created).To(BeTrue())

	m, err := repo.GetByEmail(context.Background(), name+"@x.com")
	Expect(err).NotTo(HaveOccurred())
	return user.FromDataModel(m).Principal()
}
