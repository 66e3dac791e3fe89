package query

import (
	"testing"

	. "github.com/fulldump/biff"
)

type JSON = map[string]any

func TestMatch_EmptyFilter(t *testing.T) {
	AssertTrue(Match(nil, JSON{"a": 1.0}))
	AssertTrue(Match(JSON{}, JSON{}))
}

func TestMatch_Literals(t *testing.T) {
	doc := JSON{"name": "Alpha", "age": 30.0, "active": true, "nick": nil}

	AssertTrue(Match(JSON{"name": "Alpha"}, doc))
	AssertTrue(Match(JSON{"name": "Alpha", "age": 30}, doc))
	AssertFalse(Match(JSON{"name": "Alpha", "age": 31}, doc))
	AssertFalse(Match(JSON{"name": "alpha"}, doc))
	AssertFalse(Match(JSON{"age": "30"}, doc))
	AssertTrue(Match(JSON{"active": true}, doc))
	AssertTrue(Match(JSON{"nick": nil}, doc))
	AssertTrue(Match(JSON{"missing": nil}, doc))
}

func TestMatch_ContainersAreNeverEqual(t *testing.T) {
	doc := JSON{"tags": []any{"a"}, "address": JSON{"city": "Madrid"}}

	AssertFalse(Match(JSON{"tags": []any{"a"}}, doc))
	AssertFalse(Match(JSON{"address": JSON{"city": "Madrid"}}, doc))
}

func TestMatch_Operators(t *testing.T) {
	doc := JSON{"age": 30.0, "name": "Beta"}

	AssertTrue(Match(JSON{"age": JSON{"$eq": 30}}, doc))
	AssertTrue(Match(JSON{"age": JSON{"$ne": 31}}, doc))
	AssertTrue(Match(JSON{"age": JSON{"$gt": 29, "$lt": 31}}, doc))
	AssertTrue(Match(JSON{"age": JSON{"$gte": 30, "$lte": 30}}, doc))
	AssertFalse(Match(JSON{"age": JSON{"$gt": 30}}, doc))
	AssertTrue(Match(JSON{"name": JSON{"$gt": "Alpha"}}, doc))
	AssertFalse(Match(JSON{"name": JSON{"$gt": 1}}, doc))
	AssertTrue(Match(JSON{"name": JSON{"$in": []any{"Alpha", "Beta"}}}, doc))
	AssertTrue(Match(JSON{"name": JSON{"$in": []string{"Beta"}}}, doc))
	AssertFalse(Match(JSON{"name": JSON{"$nin": []any{"Beta"}}}, doc))
	AssertTrue(Match(JSON{"name": JSON{"$nin": []any{"Gamma"}}}, doc))
}

func TestMatch_MalformedFailsClosed(t *testing.T) {
	doc := JSON{"name": "Beta"}

	AssertFalse(Match(JSON{"name": JSON{"$in": "Beta"}}, doc))
	AssertFalse(Match(JSON{"name": JSON{"$nin": "Gamma"}}, doc))
	AssertFalse(Match(JSON{"name": JSON{"$regex": "B.*"}}, doc))
	AssertFalse(Match(JSON{"name": JSON{"$eq": "Beta", "$foo": 1}}, doc))
}

func TestLiteralFields(t *testing.T) {
	fields := LiteralFields(JSON{
		"name": "Alpha",
		"age":  JSON{"$gt": 3},
		"tags": JSON{"plain": true},
	})
	AssertEqual(fields, map[string]any{
		"name": "Alpha",
		"tags": JSON{"plain": true},
	})
}

func TestLess(t *testing.T) {
	AssertTrue(Less(nil, false))
	AssertTrue(Less(false, true))
	AssertTrue(Less(true, -1.0))
	AssertTrue(Less(1, 2.5))
	AssertTrue(Less(100.0, "0"))
	AssertTrue(Less("a", "b"))
	AssertFalse(Less("b", "a"))
	AssertFalse(Less(2, 2.0))
}
