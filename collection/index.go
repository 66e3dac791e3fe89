package collection

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/google/btree"

	"github.com/fulldump/docstore/query"
)

// Index maps every primitive value of a field to the positions holding it.
// Missing fields are indexed as null. It is a full rebuild snapshot: any
// mutation of the collection marks it stale and the next lookup rebuilds it.
type Index struct {
	Field   string
	entries *btree.BTreeG[*indexEntry]
	stale   bool
}

type indexEntry struct {
	Value     any
	Positions []int
}

type IndexInfo struct {
	Field   string `json:"field"`
	Entries int    `json:"entries"`
	Stale   bool   `json:"stale"`
}

func newIndex(field string) *Index {
	return &Index{
		Field: field,
		entries: btree.NewG(32, func(a, b *indexEntry) bool {
			return query.Less(a.Value, b.Value)
		}),
	}
}

func (i *Index) add(value any, pos int) {
	if !query.IsPrimitive(value) {
		return // containers are never equal to anything
	}
	if f, ok := value.(float64); ok && math.IsNaN(f) {
		return
	}

	pivot := &indexEntry{Value: value}
	entry, found := i.entries.Get(pivot)
	if !found {
		entry = pivot
		i.entries.ReplaceOrInsert(entry)
	}
	entry.Positions = append(entry.Positions, pos)
}

func (i *Index) equal(value any) []int {
	if !query.IsPrimitive(value) {
		return nil
	}
	entry, found := i.entries.Get(&indexEntry{Value: value})
	if !found {
		return nil
	}
	return entry.Positions
}

// between returns positions whose value shares kind with the bounds and lies
// in [from, to]. A nil bound is open.
func (i *Index) between(from, to any) []int {
	result := []int{}
	kind := from
	if kind == nil {
		kind = to
	}

	iterator := func(entry *indexEntry) bool {
		if !query.SameKind(entry.Value, kind) {
			return !query.Less(kind, entry.Value)
		}
		if to != nil && query.Less(to, entry.Value) {
			return false
		}
		result = append(result, entry.Positions...)
		return true
	}

	if from != nil {
		i.entries.AscendGreaterOrEqual(&indexEntry{Value: from}, iterator)
	} else {
		i.entries.Ascend(iterator)
	}

	return result
}

func (i *Index) Len() int {
	return i.entries.Len()
}

// BuildIndex scans the whole collection and replaces any previous index on
// the same field.
func (c *Collection) BuildIndex(field string) *IndexInfo {
	index := newIndex(field)
	c.fill(index)
	c.indexes[field] = index
	return index.info()
}

func (c *Collection) fill(index *Index) {
	index.entries.Clear(false)
	for pos, doc := range c.rows {
		index.add(doc[index.Field], pos)
	}
	index.stale = false
}

func (c *Collection) DropIndex(field string) error {
	if _, exists := c.indexes[field]; !exists {
		return fmt.Errorf("index '%s' not found", field)
	}
	delete(c.indexes, field)
	return nil
}

func (c *Collection) HasIndex(field string) bool {
	_, exists := c.indexes[field]
	return exists
}

func (c *Collection) Indexes() []*IndexInfo {
	result := []*IndexInfo{}
	for _, index := range c.indexes {
		result = append(result, index.info())
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].Field < result[b].Field
	})
	return result
}

func (i *Index) info() *IndexInfo {
	return &IndexInfo{
		Field:   i.Field,
		Entries: i.entries.Len(),
		Stale:   i.stale,
	}
}

func (c *Collection) invalidateIndexes() {
	for _, index := range c.indexes {
		index.stale = true
	}
}

// Lookup resolves a single field condition through the index on that field.
// ok is false when there is no index or the condition can not be answered by
// one, the caller must then scan. Returned positions are ascending candidates
// and still have to be checked with the matcher.
func (c *Collection) Lookup(field string, condition any) (positions []int, ok bool) {
	index, exists := c.indexes[field]
	if !exists {
		return nil, false
	}

	operators, isOperator := query.AsOperators(condition)
	if !isOperator {
		if !query.IsPrimitive(condition) {
			return nil, false
		}
		c.refresh(index)
		return sortedUnique(index.equal(condition)), true
	}

	for op := range operators {
		switch op {
		case query.OpEq, query.OpIn, query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		default:
			return nil, false
		}
	}

	if operand, exists := operators[query.OpEq]; exists {
		if !query.IsPrimitive(operand) {
			return nil, false
		}
		c.refresh(index)
		return sortedUnique(index.equal(operand)), true
	}

	if operand, exists := operators[query.OpIn]; exists {
		items, isSequence := query.AsSequence(operand)
		if !isSequence {
			return nil, false
		}
		c.refresh(index)
		result := []int{}
		for _, item := range items {
			result = append(result, index.equal(item)...)
		}
		return sortedUnique(result), true
	}

	from, fromOk := rangeBound(operators, query.OpGt, query.OpGte)
	to, toOk := rangeBound(operators, query.OpLt, query.OpLte)
	if !fromOk || !toOk {
		return nil, false
	}
	if from != nil && to != nil && !query.SameKind(from, to) {
		return []int{}, true
	}

	c.refresh(index)
	return sortedUnique(index.between(from, to)), true
}

// rangeBound picks the bound of a range condition. Only numbers and strings
// are valid bounds.
func rangeBound(operators map[string]any, exclusive, inclusive string) (any, bool) {
	var bound any
	for _, op := range []string{exclusive, inclusive} {
		operand, exists := operators[op]
		if !exists {
			continue
		}
		if _, isNumber := query.Number(operand); !isNumber {
			if _, isString := operand.(string); !isString {
				return nil, false
			}
		}
		if bound != nil && !query.SameKind(bound, operand) {
			return nil, false
		}
		bound = operand
	}
	return bound, true
}

func (c *Collection) refresh(index *Index) {
	if index.stale {
		c.fill(index)
	}
}

func sortedUnique(positions []int) []int {
	result := append([]int{}, positions...)
	slices.Sort(result)
	return slices.Compact(result)
}
