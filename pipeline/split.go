package pipeline

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// StratifiedSplit は各クラスの比率を保ったまま標本を訓練用とテスト用に分ける
//
// クラスごとに seed で初期化した乱数でシャッフルし、round(testSize*n_c) 件を
// テスト側へ割り当てます。2 件以上あるクラスは少なくとも 1 件を訓練側に残します。
// 返すインデックスは昇順です。
func StratifiedSplit(y []int, testSize float64, seed int64) (train, test []int, err error) {
	if len(y) == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "stratified split")
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("split.test_size", "must be in (0, 1)", testSize)
	}

	byClass := make(map[int][]int)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(testSize * float64(len(idx))))
		if nTest >= len(idx) && len(idx) > 1 {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	if len(train) == 0 || len(test) == 0 {
		return nil, nil, errors.NewValueError("StratifiedSplit",
			"too few samples to hold out a test set")
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// ClassWeights は出現頻度の逆数をクラス平均が 1 になるよう正規化した標本重みを返す
func ClassWeights(y []int) []float64 {
	counts := make(map[int]float64)
	for _, c := range y {
		counts[c]++
	}
	n := float64(len(y))
	inv := make(map[int]float64, len(counts))
	var sum float64
	for c, k := range counts {
		inv[c] = n / k
		sum += inv[c]
	}
	mean := sum / float64(len(counts))

	w := make([]float64, len(y))
	for i, c := range y {
		w[i] = inv[c] / mean
	}
	return w
}

// selectRows は X から idx の行を取り出した新しい行列を返す
func selectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

func pick[T any](v []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, r := range idx {
		out[i] = v[r]
	}
	return out
}
