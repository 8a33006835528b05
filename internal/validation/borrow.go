// Package validation holds input rules shared by the lending services.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Jayriel04/MCCAsset2.0/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

var (
	emailRegex      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	contactRegex    = regexp.MustCompile(`^\+?[\d\s\-()]{10,}$`)
	borrowerIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	strict = bluemonday.StrictPolicy()
)

const (
	maxShortText = 255
	maxLongText  = 2000

	// MsgIncomplete is reported when any required field is blank.
	MsgIncomplete = "Incomplete data. Required fields missing."
	// MsgInvalid is reported when every required field is present but some are malformed.
	MsgInvalid = "Invalid borrow application."
)

// Sanitize trims s and strips markup, escaping what remains for HTML output.
func Sanitize(s string) string {
	return strings.TrimSpace(strict.Sanitize(strings.TrimSpace(s)))
}

// Problems collects field failures so every one of them is reported at once.
type Problems struct {
	missing bool
	fields  []string
}

func (p *Problems) add(field, msg string) {
	p.fields = append(p.fields, field+": "+msg)
}

func (p *Problems) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		p.missing = true
		p.add(field, "is required")
		return false
	}
	return true
}

// text sanitizes raw and checks the stored form: markup-only input counts as
// blank, and the cap applies after escaping.
func (p *Problems) text(field, raw string, n int, required bool) string {
	clean := Sanitize(raw)
	if required && !p.required(field, clean) {
		return clean
	}
	p.maxLen(field, clean, n)
	return clean
}

func (p *Problems) maxLen(field, value string, n int) {
	if utf8.RuneCountInString(value) > n {
		p.add(field, fmt.Sprintf("must be at most %d characters", n))
	}
}

// Err returns nil when nothing failed, otherwise a validation AppError.
func (p *Problems) Err() error {
	if len(p.fields) == 0 {
		return nil
	}
	msg := MsgInvalid
	if p.missing {
		msg = MsgIncomplete
	}
	return models.NewValidationError(msg, p.fields...)
}

// BorrowFields is the raw, untrusted input of a borrow application.
type BorrowFields struct {
	AssetSerial        string
	BorrowerID         string
	BorrowerName       string
	BorrowerDepartment string
	BorrowerContact    string
	BorrowerEmail      string
	Purpose            string
	Notes              string
	RequestedDate      string
	ExpectedReturnDate string
}

// BorrowApplication is a validated and sanitized borrow application.
type BorrowApplication struct {
	AssetSerial        string
	BorrowerID         string
	BorrowerName       string
	BorrowerDepartment string
	BorrowerContact    string
	BorrowerEmail      string
	Purpose            string
	Notes              string
	RequestedDate      models.Date
	ExpectedReturnDate models.Date
}

// ValidateBorrowApplication applies the borrow rules to in. An empty
// requested date defaults to today. The expected return date must be
// strictly after the requested date.
func ValidateBorrowApplication(in BorrowFields, today models.Date) (BorrowApplication, error) {
	var p Problems
	out := BorrowApplication{
		AssetSerial: strings.TrimSpace(in.AssetSerial),
		BorrowerID:  strings.TrimSpace(in.BorrowerID),
	}

	p.required("asset_serial", out.AssetSerial)
	p.maxLen("asset_serial", out.AssetSerial, 100)

	if out.BorrowerID != "" && !borrowerIDRegex.MatchString(out.BorrowerID) {
		p.add("borrower_id", "may contain only letters, digits, '-' and '_' (max 64)")
	}

	out.BorrowerName = p.text("borrower_name", in.BorrowerName, maxShortText, true)
	out.BorrowerDepartment = p.text("borrower_department", in.BorrowerDepartment, maxShortText, true)
	out.BorrowerContact = p.text("borrower_contact", in.BorrowerContact, maxShortText, true)
	out.BorrowerEmail = p.text("borrower_email", in.BorrowerEmail, maxShortText, true)
	out.Purpose = p.text("purpose", in.Purpose, maxLongText, true)
	out.Notes = p.text("notes", in.Notes, maxLongText, false)

	email := strings.TrimSpace(in.BorrowerEmail)
	if out.BorrowerEmail != "" && !emailRegex.MatchString(email) {
		p.add("borrower_email", "must be a valid email address")
	}
	contact := strings.TrimSpace(in.BorrowerContact)
	if out.BorrowerContact != "" && !contactRegex.MatchString(contact) {
		p.add("borrower_contact", "must be a phone number of at least 10 digits")
	}

	out.RequestedDate = today
	requestedOK := true
	if raw := strings.TrimSpace(in.RequestedDate); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			p.add("requested_date", "must be a date in YYYY-MM-DD format")
			requestedOK = false
		} else {
			out.RequestedDate = d
		}
	}

	if p.required("expected_return_date", in.ExpectedReturnDate) {
		d, err := models.ParseDate(in.ExpectedReturnDate)
		switch {
		case err != nil:
			p.add("expected_return_date", "must be a date in YYYY-MM-DD format")
		case requestedOK && !d.After(out.RequestedDate):
			p.add("expected_return_date", "must be after the requested date")
		default:
			out.ExpectedReturnDate = d
		}
	}

	if err := p.Err(); err != nil {
		return BorrowApplication{}, err
	}
	return out, nil
}

// ValidateRejectionReason requires a non-blank reason and returns it sanitized.
func ValidateRejectionReason(reason string) (string, error) {
	var p Problems
	clean := p.text("reason", reason, maxLongText, true)
	if err := p.Err(); err != nil {
		return "", models.NewValidationError("Rejection reason is required.", p.fields...)
	}
	return clean, nil
}

// ValidateReturnDate parses raw, defaulting to today when blank. A return
// cannot be recorded before the day the asset was requested.
func ValidateReturnDate(raw string, requested, today models.Date) (models.Date, error) {
	d := today
	if strings.TrimSpace(raw) != "" {
		parsed, err := models.ParseDate(raw)
		if err != nil {
			return models.Date{}, models.NewValidationError(MsgInvalid, "actual_return_date: must be a date in YYYY-MM-DD format")
		}
		d = parsed
	}
	if d.Before(requested) {
		return models.Date{}, models.NewValidationError(MsgInvalid, "actual_return_date: must not be before the requested date")
	}
	return d, nil
}
