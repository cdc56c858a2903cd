package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aman-churiwal/credit-gateway/internal/admission"
	"github.com/aman-churiwal/credit-gateway/internal/credit"
	"github.com/shopspring/decimal"
)

// Subject is what the lender's back office files the request under
func Subject(jetID string, orderNumber int64) string {
	return fmt.Sprintf("%s, онлайн заявка по поръчка %d", jetID, orderNumber)
}

// NewMessage addresses the request to the lender, copying the shop and the buyer
func NewMessage(sub *admission.Submission, orderNumber int64, body string) Message {
	return Message{
		FromName: string(sub.JetID),
		From:     string(sub.ShopEmail),
		To:       []string{string(sub.LenderEmail)},
		Cc:       []string{string(sub.ShopEmail), string(sub.Email)},
		Subject:  Subject(string(sub.JetID), orderNumber),
		Body:     body,
	}
}

// Body renders the plain text summary the lender processes by hand
func Body(sub *admission.Submission, order admission.Order, plan credit.Plan) string {
	var b strings.Builder

	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	line("Данни за потребителя:")
	line("Собствено име: %s;", sub.FirstName)
	line("Фамилия: %s;", sub.LastName)
	line("ЕГН: %s;", sub.NationalID)
	line("Телефон за връзка: %s;", sub.Phone)
	line("Имейл адрес: %s;", sub.Email)
	line("")

	line("Данни за стоката:")
	multiple := len(sub.Items) > 1
	for i, item := range sub.Items {
		total := decimal.Zero
		if i < len(order.Items) {
			total = order.Items[i].UnitPrice.Mul(decimal.NewFromInt(order.Items[i].Quantity))
		}

		if multiple {
			line("Продукт %d:", i+1)
		}
		variant := string(item.Variant)
		if variant == "" {
			variant = "-"
		}
		line("Тип стока: %s;", item.Title)
		line("Марка: (%s) %s;", item.ProductID, variant)
		line("Единична цена с ДДС: %s;", item.UnitPrice)
		line("Брой стоки: %s;", item.Quantity)
		line("Обща сума с ДДС: %s;", total.StringFixed(2))
		line("")
	}

	if sub.Card.Value {
		line("Тип стока: Кредитна Карта;")
		line("Марка: -;")
		line("Единична цена с ДДС: 0.00;")
		line("Брой стоки: 1;")
		line("Обща сума с ДДС: 0.00;")
		line("")
	}

	line("Данни за кредита:")
	line("Размер на кредита: %s;", plan.Principal.StringFixed(2))
	line("Срок на изплащане в месеца: %d;", plan.InstallmentCount)
	line("Месечна вноска: %s;", plan.MonthlyPayment.StringFixed(2))
	line("Първоначална вноска: %s;", plan.DownPayment.StringFixed(2))
	if plan.Principal.IsPositive() {
		line("ГПР: %s%%;", percent(plan.AnnualPercentageRate))
		line("ГЛП: %s%%;", percent(plan.NominalAnnualRate))
	}

	return b.String()
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
