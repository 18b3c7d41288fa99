package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Method is a deposit channel the backend accepts.
type Method struct {
	Code string `json:"code"`
	Name string `json:"name"`
	// IBAN is the receiving account for bank transfers. Empty for wallets.
	IBAN string `json:"iban,omitempty"`
}

// Bank reports whether deposits through m are bank transfers.
func (m Method) Bank() bool { return m.IBAN != "" }

var methods = map[string]Method{
	"papara":    {Code: "papara", Name: "Papara"},
	"ziraat":    {Code: "ziraat", Name: "Ziraat Bankası", IBAN: "TR63 0001 0000 0000 0000 0000 01"},
	"garanti":   {Code: "garanti", Name: "Garanti BBVA", IBAN: "TR63 0006 2000 0000 0000 0000 02"},
	"isbank":    {Code: "isbank", Name: "İş Bankası", IBAN: "TR63 0006 4000 0000 0000 0000 03"},
	"akbank":    {Code: "akbank", Name: "Akbank", IBAN: "TR63 0004 6000 0000 0000 0000 04"},
	"yapikredi": {Code: "yapikredi", Name: "Yapı Kredi", IBAN: "TR63 0006 7000 0000 0000 0000 05"},
}

// ibanRegex matches a Turkish IBAN with whitespace removed:
// TR + 2 check digits + 22 digits.
var ibanRegex = regexp.MustCompile(`^TR\d{24}$`)

var (
	ErrUnknownMethod = fmt.Errorf("%w: unsupported deposit method", ErrValidation)
	ErrInvalidIBAN   = fmt.Errorf("%w: invalid IBAN", ErrValidation)
	ErrMissingSender = fmt.Errorf("%w: sender name required for bank transfers", ErrValidation)
)

// Methods returns the deposit catalogue ordered by code.
func Methods() []Method {
	out := make([]Method, 0, len(methods))
	for _, m := range methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// LookupMethod returns the catalogue entry for code.
func LookupMethod(code string) (Method, error) {
	m, ok := methods[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Method{}, fmt.Errorf("%w: %q", ErrUnknownMethod, code)
	}
	return m, nil
}

// NormalizeIBAN strips whitespace and upper-cases iban.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}

// CheckIBAN validates a Turkish IBAN, ignoring whitespace.
func CheckIBAN(iban string) error {
	if !ibanRegex.MatchString(NormalizeIBAN(iban)) {
		return fmt.Errorf("%w: %q", ErrInvalidIBAN, iban)
	}
	return nil
}

// Deposit is a deposit request as entered by the user.
type Deposit struct {
	Method string
	Amount decimal.Decimal
	// Detail carries method-specific fields, sent to the backend as JSON.
	// Bank transfers expect sender_name and optionally sender_iban.
	Detail map[string]string
	Note   string
}

// CheckDepositRequest validates the whole request: method, amount bounds and the
// bank-transfer details.
func (l Limits) CheckDepositRequest(d Deposit) error {
	m, err := LookupMethod(d.Method)
	if err != nil {
		return err
	}
	if err := l.CheckDeposit(d.Amount); err != nil {
		return err
	}
	if !m.Bank() {
		return nil
	}
	if strings.TrimSpace(d.Detail["sender_name"]) == "" {
		return ErrMissingSender
	}
	if iban := d.Detail["sender_iban"]; iban != "" {
		return CheckIBAN(iban)
	}
	return nil
}
