package dataset

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/YuminosukeSato/emissions/pkg/errors"
)

// CSVHeader は WriteCSV が出力する列の順序
var CSVHeader = []string{
	ColFuelConsumption, ColVehicleType, ColDistance, ColEngineSize, ColCountryFactor, ColEmissions,
}

// WriteCSV はデータセットを CSV として書き出す
//
// 数値は strconv の最短表現で書くため、読み戻すと元の float64 と一致する。
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return errors.Wrap(err, "failed to write csv header")
	}

	record := make([]string, len(CSVHeader))
	for i, s := range d.Samples {
		record[0] = formatFloat(s.FuelConsumption)
		record[1] = s.VehicleType
		record[2] = formatFloat(s.Distance)
		record[3] = formatFloat(s.EngineSize)
		record[4] = formatFloat(s.CountryFactor)
		record[5] = formatFloat(s.Emissions)
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "failed to write csv row %d", i)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush csv")
}

// ReadCSV は WriteCSV が出力した形式の CSV を読み込む
//
// ヘッダーは CSVHeader と完全に一致する必要がある。
func ReadCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv header")
	}
	for i, name := range CSVHeader {
		if header[i] != name {
			return nil, errors.NewInputShapeError("training", header[i], name, header[i])
		}
	}

	var samples []Sample
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read csv line %d", line)
		}

		var values [5]float64
		for j, col := range []int{0, 2, 3, 4, 5} {
			v, err := strconv.ParseFloat(record[col], 64)
			if err != nil {
				return nil, errors.NewInputShapeError("training", CSVHeader[col], "float", strconv.Quote(record[col]))
			}
			values[j] = v
		}

		s := Sample{
			Features: Features{
				FuelConsumption: values[0],
				VehicleType:     record[1],
				Distance:        values[1],
				EngineSize:      values[2],
				CountryFactor:   values[3],
			},
			Emissions: values[4],
		}
		if err := s.Validate("training"); err != nil {
			return nil, errors.Wrapf(err, "csv line %d", line)
		}
		if err := errors.CheckFinite(ColEmissions, s.Emissions); err != nil {
			return nil, errors.Wrapf(err, "csv line %d", line)
		}
		samples = append(samples, s)
	}

	if len(samples) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no rows")
	}
	return samples, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
