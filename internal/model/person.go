package model

// Person is a participant in splits. Identity is immutable once created.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	ID    int64  `json:"id"`
}

// Split is a named group of people sharing a pool of transactions.
type Split struct {
	Name   string   `json:"name"`
	People []Person `json:"people"`
	ID     int64    `json:"id"`
}

// PersonIDs returns the ids of the split members.
func (s *Split) PersonIDs() []int64 {
	ids := make([]int64, 0, len(s.People))
	for _, p := range s.People {
		ids = append(ids, p.ID)
	}
	return ids
}
