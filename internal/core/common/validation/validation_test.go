package validation_test

import (
	"strings"
	"testing"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/common/validation"
	ozzo "github.com/go-ozzo/ozzo-validation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validation Suite")
}

var _ = Describe("Rules", func() {
	DescribeTable("StrongPassword",
		func(password string, ok bool) {
			err := validation.StrongPassword(password)
			if ok {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(HaveOccurred())
			}
		},
		Entry("mixed", "Secr3t!pass", true),
		Entry("too short", "S3t!a", false),
		Entry("no upper", "secr3t!pass", false),
		Entry("no digit", "Secret!pass", false),
		Entry("no symbol", "Secr3tpass1", false),
		Entry("at the bcrypt limit", "Aa1!"+strings.Repeat("x", 68), true),
		Entry("past the bcrypt limit", "Aa1!"+strings.Repeat("x", 69), false),
		Entry("multibyte past the bcrypt limit", "Aa1!"+strings.Repeat("é", 35), false),
	)

	It("normalizes phone numbers to E.164", func() {
		phone, err := validation.NormalizePhone("+1 650-253-0000")
		Expect(err).NotTo(HaveOccurred())
		Expect(phone).To(Equal("+16502530000"))

		_, err = validation.NormalizePhone("555-2671")
		Expect(err).To(HaveOccurred())
	})

	It("accepts only past dates", func() {
		now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
		rule := validation.PastDate(now)

		Expect(rule("1990-05-17")).To(Succeed())
		Expect(rule("2026-01-02")).NotTo(Succeed())
		Expect(rule("17/05/1990")).NotTo(Succeed())
		Expect(rule("")).To(Succeed())
	})

	It("reads optional string pointers", func() {
		spaced := "has space"
		Expect(validation.NoWhitespace(&spaced)).NotTo(Succeed())

		var missing *string
		Expect(validation.NoWhitespace(missing)).To(Succeed())
	})
})

var _ = Describe("Translate", func() {
	type form struct {
		Name  string
		Email string
	}

	It("turns field errors into sorted validation details", func() {
		f := form{}
		err := validation.Translate(ozzo.ValidateStruct(&f,
			ozzo.Field(&f.Name, ozzo.Required),
			ozzo.Field(&f.Email, ozzo.Required),
		))

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Kind).To(Equal(internal.KindValidation))

		details := appErr.Details.(internal.ValidationErrors)
		Expect(details.Errors).To(HaveLen(2))
		Expect(details.Errors[0].Field).To(Equal("Email"))
		Expect(details.Errors[1].Field).To(Equal("Name"))
	})

	It("passes nil through", func() {
		Expect(validation.Translate(nil)).To(BeNil())
	})
})
