package collection

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/fulldump/docstore/query"
	"github.com/fulldump/docstore/utils"
)

// ErrInvalidValue is returned for values a snapshot can not hold, such as
// NaN or infinite numbers.
var ErrInvalidValue = errors.New("invalid value")

func normalizeDocument(item Document) (Document, error) {
	doc := make(Document, len(item)+1)
	for k, v := range item {
		nv, err := normalizeJSONValue(v)
		if err != nil {
			return nil, fmt.Errorf("field '%s': %w", k, err)
		}
		doc[k] = nv
	}
	return doc, nil
}

// normalizeJSONValue turns any Go value into the shape a snapshot reload
// would produce: float64 numbers, map[string]any objects and []any arrays.
func normalizeJSONValue(value any) (any, error) {
	if n, ok := query.Number(value); ok {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%w: non finite number %v", ErrInvalidValue, n)
		}
		return n, nil
	}

	switch v := value.(type) {
	case nil, string, bool:
		return v, nil
	case map[string]any:
		normalized := make(map[string]any, len(v))
		for key, item := range v {
			nv, err := normalizeJSONValue(item)
			if err != nil {
				return nil, err
			}
			normalized[key] = nv
		}
		return normalized, nil
	case []any:
		normalized := make([]any, len(v))
		for i, item := range v {
			nv, err := normalizeJSONValue(item)
			if err != nil {
				return nil, err
			}
			normalized[i] = nv
		}
		return normalized, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			break // []byte and json.RawMessage go through json
		}
		normalized := make([]any, rv.Len())
		for i := range normalized {
			nv, err := normalizeJSONValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			normalized[i] = nv
		}
		return normalized, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		normalized := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			nv, err := normalizeJSONValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			normalized[iter.Key().String()] = nv
		}
		return normalized, nil
	}

	var decoded any
	if err := utils.Remarshal(value, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, err.Error())
	}
	return decoded, nil
}

func cloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	return cloneJSONValue(doc).(map[string]any)
}

func cloneJSONValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		cloned := make(map[string]any, len(v))
		for k, item := range v {
			cloned[k] = cloneJSONValue(item)
		}
		return cloned
	case []any:
		if v == nil {
			return v
		}
		cloned := make([]any, len(v))
		for i, item := range v {
			cloned[i] = cloneJSONValue(item)
		}
		return cloned
	default:
		return v
	}
}
