package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/YuminosukeSato/emissions/dataset"
	"github.com/YuminosukeSato/emissions/pkg/errors"
)

// RowFromMap は列名をキーとするマップから推論用の行を組み立てる
//
// 5つの列がすべて必要で、余分なキーや型の合わない値は InputShapeError になる。
// 数値は float64, float32, int, int64, json.Number を受け付ける。
func RowFromMap(m map[string]interface{}) (dataset.Features, error) {
	var row dataset.Features

	known := map[string]bool{
		dataset.ColFuelConsumption: true,
		dataset.ColVehicleType:     true,
		dataset.ColDistance:        true,
		dataset.ColEngineSize:      true,
		dataset.ColCountryFactor:   true,
	}
	extra := make([]string, 0)
	for k := range m {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return row, errors.NewInputShapeError("prediction", extra[0], "no such field", "unexpected field")
	}

	raw, ok := m[dataset.ColVehicleType]
	if !ok {
		return row, errors.NewInputShapeError("prediction", dataset.ColVehicleType, "string", "missing")
	}
	vehicle, ok := raw.(string)
	if !ok {
		return row, errors.NewInputShapeError("prediction", dataset.ColVehicleType, "string", typeName(raw))
	}
	row.VehicleType = vehicle

	for _, field := range []struct {
		name string
		dst  *float64
	}{
		{dataset.ColFuelConsumption, &row.FuelConsumption},
		{dataset.ColDistance, &row.Distance},
		{dataset.ColEngineSize, &row.EngineSize},
		{dataset.ColCountryFactor, &row.CountryFactor},
	} {
		raw, ok := m[field.name]
		if !ok {
			return row, errors.NewInputShapeError("prediction", field.name, "number", "missing")
		}
		v, err := toFloat(field.name, raw)
		if err != nil {
			return row, err
		}
		*field.dst = v
	}

	return row, row.Validate("prediction")
}

// DecodeRow は JSON オブジェクト1つを推論用の行としてデコードする
func DecodeRow(r io.Reader) (dataset.Features, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		if malformed(err) {
			return dataset.Features{}, errors.NewInputShapeError("prediction", "", "JSON object", "malformed JSON")
		}
		return dataset.Features{}, errors.Wrap(err, "failed to read row")
	}
	if m == nil {
		return dataset.Features{}, errors.NewInputShapeError("prediction", "", "JSON object", "null")
	}

	// 本文は1つのJSONオブジェクトだけを含む
	var extra json.RawMessage
	switch err := dec.Decode(&extra); {
	case err == io.EOF:
	case err == nil || malformed(err):
		return dataset.Features{}, errors.NewInputShapeError("prediction", "", "single JSON object", "trailing data")
	default:
		return dataset.Features{}, errors.Wrap(err, "failed to read row")
	}
	return RowFromMap(m)
}

// malformed reports whether err comes from the JSON syntax rather than the reader
func malformed(err error) bool {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	return err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func toFloat(name string, raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, errors.NewInputShapeError("prediction", name, "number", fmt.Sprintf("%q", v.String()))
		}
		return f, nil
	default:
		return 0, errors.NewInputShapeError("prediction", name, "number", typeName(raw))
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
