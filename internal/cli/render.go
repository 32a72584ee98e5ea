package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/billsplit/internal/model"
)

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// RenderItems renders extracted bill items as a table with a total line.
func RenderItems(items []model.BillItem, total float64, currency string) string {
	if len(items) == 0 {
		return FormatWarning("No items")
	}

	nameWidth := len("Item")
	for _, item := range items {
		nameWidth = max(nameWidth, lipgloss.Width(item.Name))
	}
	nameStyle := cellStyle.Width(nameWidth + 2)

	var b strings.Builder
	b.WriteString(headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		nameStyle.Render("Item"),
		amountStyle.Render("Price"),
		amountStyle.Render("Qty"),
		amountStyle.Render("Total"),
	)))
	b.WriteString("\n")

	for _, item := range items {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			nameStyle.Render(item.Name),
			amountStyle.Render(money(item.Price)),
			amountStyle.Render(fmt.Sprintf("%d", item.Quantity)),
			amountStyle.Render(money(item.Total)),
		))
		b.WriteString("\n")
	}

	b.WriteString(boldStyle.Render(fmt.Sprintf("Total: %s %s", money(total), currency)))
	return b.String()
}

// RenderTransaction renders who owes and who paid for a transaction.
func RenderTransaction(txn *model.Transaction) string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s  %s", txn.Date, txn.TransactionType, money(txn.BillAmount))
	b.WriteString(dimStyle.Render(header))
	b.WriteString("\n\n")

	writeShares := func(label string, shares []model.Share) {
		b.WriteString(boldStyle.Render(label))
		b.WriteString("\n")
		if len(shares) == 0 {
			b.WriteString(dimStyle.Render("  (none)"))
			b.WriteString("\n")
			return
		}
		for _, s := range shares {
			name := s.Person.Name
			if name == "" {
				name = fmt.Sprintf("person #%d", s.Person.ID)
			}
			b.WriteString(fmt.Sprintf("  %-16s %s\n", name, money(s.Amount)))
		}
	}
	writeShares("Owes", txn.Splits)
	writeShares("Paid", txn.PaidBy)

	if diff := txn.SplitTotal() - txn.BillAmount; diff > 0.01 || diff < -0.01 {
		b.WriteString(FormatWarning(fmt.Sprintf("splits total %s, bill is %s", money(txn.SplitTotal()), money(txn.BillAmount))))
		b.WriteString("\n")
	}

	title := txn.Title
	if title == "" {
		title = "Transaction"
	}
	return RenderBox(title, strings.TrimRight(b.String(), "\n"))
}
