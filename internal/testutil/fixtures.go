package testutil

import (
	"strings"
	"testing"

	"github.com/Veraticus/billsplit/internal/model"
)

// PersonName represents a strongly-typed fixture person name.
type PersonName string

// String returns the string representation of the name.
func (n PersonName) String() string {
	return string(n)
}

// Email derives a deterministic address from the name.
func (n PersonName) Email() string {
	return strings.ToLower(strings.ReplaceAll(string(n), " ", "")) + "@example.com"
}

// Common people used across tests.
const (
	Alice   PersonName = "Alice"
	Bob     PersonName = "Bob"
	Charlie PersonName = "Charlie"
	Diana   PersonName = "Diana"
	JohnDoe PersonName = "John Doe"
)

// BasicPeople is the minimal set of people commonly used in tests.
func BasicPeople() []PersonName {
	return []PersonName{Alice, Bob, Charlie}
}

// SplitFixture describes a split to create from fixture people.
type SplitFixture struct {
	Name    string
	Members []PersonName
}

// People represents a collection of created test people.
type People []model.Person

// Find returns the person with the given name, or nil if not found.
func (p People) Find(name PersonName) *model.Person {
	for i := range p {
		if p[i].Name == name.String() {
			return &p[i]
		}
	}
	return nil
}

// MustFind returns the person with the given name, or fails the test if not found.
func (p People) MustFind(t *testing.T, name PersonName) model.Person {
	t.Helper()
	person := p.Find(name)
	if person == nil {
		t.Fatalf("person %q not found in test data", name)
	}
	return *person
}

// Splits represents a collection of created test splits.
type Splits []model.Split

// Share builds a model.Share for a fixture person.
func Share(p model.Person, amount float64) model.Share {
	return model.Share{Person: p, Amount: amount}
}
