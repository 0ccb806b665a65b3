package constraint

import (
	"sort"
)

// Catalog holds constraints keyed by ID. Adding an existing ID keeps the
// entry with the higher confidence. It is not safe for concurrent use.
type Catalog struct {
	byID map[string]Constraint
}

func NewCatalog(cs ...Constraint) *Catalog {
	c := &Catalog{byID: make(map[string]Constraint)}
	c.Add(cs...)
	return c
}

// Add inserts cs and returns how many were new.
func (c *Catalog) Add(cs ...Constraint) int {
	added := 0
	for _, con := range cs {
		if con.ID == "" {
			con.ID = ID(con.Type, con.MarketIDs)
		}
		prev, ok := c.byID[con.ID]
		if !ok {
			added++
			c.byID[con.ID] = con
			continue
		}
		if con.Confidence > prev.Confidence {
			c.byID[con.ID] = con
		}
	}
	return added
}

// All returns the constraints sorted by type then ID.
func (c *Catalog) All() []Constraint {
	out := make([]Constraint, 0, len(c.byID))
	for _, con := range c.byID {
		out = append(out, con)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (c *Catalog) Get(id string) (Constraint, bool) {
	con, ok := c.byID[id]
	return con, ok
}

func (c *Catalog) Len() int { return len(c.byID) }

// CountByType tallies the catalog per constraint type.
func (c *Catalog) CountByType() map[Type]int {
	out := make(map[Type]int)
	for _, con := range c.byID {
		out[con.Type]++
	}
	return out
}
