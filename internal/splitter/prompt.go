package splitter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/billsplit/internal/model"
)

// DefaultRules apply when a bill arrives without splitting instructions.
const DefaultRules = "Split the bill fairly among charlie, bob and dave. Charlie is a vegetarian only."

const systemMessage = `You are an expert bill splitting assistant.
You are given:

- Itemized data from a bill (a list of item names and their prices).
- People who need to split the bill.
- Special splitting conditions, such as certain items assigned only to specific individuals.

Your task is to create a fully structured JSON object matching the following TypeScript types:

export type PersonType = {
  id: number;
  name: string;
  email: string;
}

export type TransactionItemType = {
  name: string;
  price: number;
}

export type TransactionType = {
  id: number;
  splitId: number;
  title: string;
  transactionType: "SHOPPING" | "GROCERY" | "DINING" | "ENTERTAINMENT" | "OTHER";
  items: TransactionItemType[];
  splits: { person: PersonType; amount: number }[];
  billAmount: number;
  paidBy: { person: PersonType; amount: number }[];
  date: string; // ISO format (e.g., "2025-04-27")
  billLink?: string;
}

Output requirements:

- Output a single valid JSON object matching the TransactionType format.
- Calculate billAmount by summing all item totals.
- Split amounts among people based on the given conditions.
- Only use people from the known people list, with their exact ids.
- List who paid in the paidBy field.
- Use today's date if no date is given.
- If transactionType is not specified, default to "DINING".
- If no billLink is given, omit it from the output.
- Ensure that the total of all splits matches billAmount.
- Do not add any explanation or commentary. Only output the JSON object.

Example input:

Bill Items:
- Burger: $10 x 1 = $10
- Pizza: $15 x 1 = $15
- Coke: $5 x 1 = $5
- Beer: $7 x 1 = $7

Splitting Rules:
Beer only drank by Bob. All other food split evenly between Alice and Bob. Bob paid the entire bill.

Example output:
{
  "id": 101,
  "splitId": 1,
  "title": "Dinner at Joe's",
  "transactionType": "DINING",
  "items": [
    { "name": "Burger", "price": 10 },
    { "name": "Pizza", "price": 15 },
    { "name": "Coke", "price": 5 },
    { "name": "Beer", "price": 7 }
  ],
  "splits": [
    { "person": { "id": 1, "name": "Alice", "email": "alice@example.com" }, "amount": 15 },
    { "person": { "id": 2, "name": "Bob", "email": "bob@example.com" }, "amount": 22 }
  ],
  "billAmount": 37,
  "paidBy": [
    { "person": { "id": 2, "name": "Bob", "email": "bob@example.com" }, "amount": 37 }
  ],
  "date": "2025-04-27"
}`

func money(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatItems renders one "- name: $price x quantity = $total" line per item.
func FormatItems(items []model.BillItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("- %s: $%s x %d = $%s", item.Name, money(item.Price), item.Quantity, money(item.Total)))
	}
	return strings.Join(lines, "\n")
}

func buildPrompt(items []model.BillItem, rules string) string {
	var b strings.Builder
	b.WriteString("Bill Items:\n")
	b.WriteString(FormatItems(items))
	b.WriteString("\n\nSplitting Rules:\n")
	b.WriteString(rules)
	b.WriteString(`

Create the transaction, considering:
1. Items that should be split equally
2. Items assigned to specific people
3. Special cases or conditions`)
	return b.String()
}

// PeopleContext renders known people as a context message for the model.
func PeopleContext(people []model.Person) string {
	if len(people) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Known people:\n")
	for _, p := range people {
		fmt.Fprintf(&b, "- { id: %d, name: %q, email: %q }\n", p.ID, p.Name, p.Email)
	}
	return strings.TrimRight(b.String(), "\n")
}
