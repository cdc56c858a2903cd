package admission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aman-churiwal/credit-gateway/internal/credit"
	"github.com/shopspring/decimal"
)

// FlexString accepts a JSON string, number or boolean and keeps its trimmed
// text form. Storefront snippets send amounts both as "12.50" and 12.5.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
	case 't':
		*f = "1"
	case 'f':
		*f = ""
	case '{', '[':
		return fmt.Errorf("expected scalar, got %s", data[:1])
	default:
		*f = FlexString(data)
	}

	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// FlexBool records whether the key was sent at all, next to its truthiness
type FlexBool struct {
	Present bool
	Value   bool
}

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	f.Present = true

	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}

	switch strings.ToLower(string(s)) {
	case "", "0", "false", "off", "no":
		f.Value = false
	default:
		f.Value = true
	}

	return nil
}

func (f FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Value)
}

type Item struct {
	ProductID FlexString `json:"jet_product_id" validate:"required"`
	Title     FlexString `json:"product_c_txt" validate:"required"`
	UnitPrice FlexString `json:"product_p_txt" validate:"required"`
	Quantity  FlexString `json:"jet_quantity" validate:"required"`
	Variant   FlexString `json:"att_name,omitempty"`
}

// Submission is the checkout payload posted by the storefront snippet
type Submission struct {
	JetID               FlexString `json:"jet_id" validate:"required"`
	ShopDomain          FlexString `json:"shop_domain" validate:"required"`
	ShopPermanentDomain FlexString `json:"shop_permanent_domain" validate:"required"`

	FirstName  FlexString `json:"jet-step2-firstname" validate:"required"`
	LastName   FlexString `json:"jet-step2-lastname" validate:"required"`
	NationalID FlexString `json:"jet-step2-egn" validate:"required"`
	Phone      FlexString `json:"jet-step2-phone" validate:"required"`
	Email      FlexString `json:"jet-step2-email" validate:"required"`

	Items []Item   `json:"items" validate:"required,min=1,dive"`
	Card  FlexBool `json:"jet_card" validate:"required"`

	DownPayment    FlexString `json:"jet_parva" validate:"required"`
	Installments   FlexString `json:"jet_vnoski" validate:"required"`
	MonthlyPayment FlexString `json:"jet_vnoska" validate:"required"`
	LenderEmail    FlexString `json:"jet_email_pbpf" validate:"required"`
	ShopEmail      FlexString `json:"jet_email_shop" validate:"required"`

	// Optional per-plan markup; the merchant default applies when absent
	MarkupPercent FlexString `json:"jet_purcent,omitempty"`

	// Keys DecodeSubmission could not decode
	malformed []string
}

// MerchantKey is the identifier sequence numbers are issued under. The
// permanent domain survives storefront renames, so it is preferred.
func (s *Submission) MerchantKey() string {
	if s.ShopPermanentDomain != "" {
		return string(s.ShopPermanentDomain)
	}
	return string(s.ShopDomain)
}

// Order holds the typed amounts of a submission
type Order struct {
	Items         []credit.Item
	DownPayment   decimal.Decimal
	Installments  int
	QuotedPayment decimal.Decimal
	Markup        *decimal.Decimal
}

// Order parses the amounts of a complete submission. The returned slice
// names every field that could not be parsed.
func (s *Submission) Order() (Order, []string) {
	var (
		order   Order
		invalid []string
		err     error
	)

	for i, item := range s.Items {
		price, err := parseAmount(item.UnitPrice)
		if err != nil || price.IsNegative() {
			invalid = append(invalid, fmt.Sprintf("items[%d].product_p_txt", i))
		}
		qty, err := strconv.ParseInt(string(item.Quantity), 10, 64)
		if err != nil || qty <= 0 {
			invalid = append(invalid, fmt.Sprintf("items[%d].jet_quantity", i))
		}
		order.Items = append(order.Items, credit.Item{UnitPrice: price, Quantity: qty})
	}

	if order.DownPayment, err = parseAmount(s.DownPayment); err != nil {
		invalid = append(invalid, "jet_parva")
	}

	if order.Installments, err = strconv.Atoi(string(s.Installments)); err != nil || !credit.OnLadder(order.Installments) {
		invalid = append(invalid, "jet_vnoski")
	}

	if order.QuotedPayment, err = parseAmount(s.MonthlyPayment); err != nil {
		invalid = append(invalid, "jet_vnoska")
	}

	if s.MarkupPercent != "" {
		markup, err := parseAmount(s.MarkupPercent)
		if err != nil || markup.IsNegative() {
			invalid = append(invalid, "jet_purcent")
		} else {
			order.Markup = &markup
		}
	}

	return order, invalid
}

// Accepts "12.50", "12,50" and "12"
func parseAmount(v FlexString) (decimal.Decimal, error) {
	s := string(v)
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}
