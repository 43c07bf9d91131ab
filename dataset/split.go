package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/emissions/pkg/errors"
)

// TrainTestSplit はサンプルを学習用と評価用に分割する
//
// 評価用の件数は ceil(testSize·n)、残りが学習用になる。シードから作った1つの
// 順列の先頭 nTest 件を評価用、続く件を学習用とし、行は順列の順で並ぶ。
// 同じ (ds, testSize, seed) からは常に同じ分割が得られる。
//
// testSize が (0, 1) の範囲外、またはどちらかの分割が空になる場合は ValidationError を返す。
func TrainTestSplit(ds *Dataset, testSize float64, seed int64) (train, test []Sample, err error) {
	if ds == nil || len(ds.Samples) == 0 {
		return nil, nil, errors.NewValidationError("dataset", "must contain at least one sample", 0)
	}
	if math.IsNaN(testSize) || testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in the open interval (0, 1)", testSize)
	}

	n := len(ds.Samples)
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, nil, errors.NewValidationError("test_size",
			"leaves an empty partition for the given number of samples", testSize)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	perm := rng.Perm(n)

	test = make([]Sample, 0, nTest)
	for _, idx := range perm[:nTest] {
		test = append(test, ds.Samples[idx])
	}
	train = make([]Sample, 0, nTrain)
	for _, idx := range perm[nTest:] {
		train = append(train, ds.Samples[idx])
	}
	return train, test, nil
}
