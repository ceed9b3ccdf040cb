package swagger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport/swagger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSwagger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Swagger Suite")
}

var _ = Describe("OpenAPI document", func() {
	It("loads and validates", func() {
		doc, err := swagger.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Info.Title).To(Equal("User Management Service"))
	})

	It("documents the identity routes", func() {
		doc, err := swagger.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())

		for _, path := range []string{
			"/auth/login",
			"/auth/refresh",
			"/auth/logout",
			"/auth/me",
			"/auth/change-password",
			"/auth/forgot-password",
			"/auth/reset-password/{token}",
			"/users/{id}/permissions",
			"/users/{id}/inactivate",
			"/users/{id}/activate",
		} {
			Expect(doc.Paths.Find(path)).NotTo(BeNil(), path)
		}
	})

	It("serves the raw document", func() {
		rec := httptest.NewRecorder()
		swagger.DocumentHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, swagger.DocumentPath, nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("openapi: 3.0.3"))
	})
})
