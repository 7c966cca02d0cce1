package mat

import gonum "gonum.org/v1/gonum/mat"

// preorder 消除 MNA 矩阵的零对角元
//
// 电压源支路列对角为零, 与其节点列互为 ±1 孪生元素。
// 只有一对孪生的列直接交换; 多对孪生的列在其他列处理完后再交换一次。
func preorder(a *gonum.Dense, perm []int) {
	n := len(perm)
	for k := range perm {
		perm[k] = k
	}
	at := func(i, k int) float64 { return a.At(i, perm[k]) }
	start := 0
	for {
		again := false
		swapped := false
		for j := start; j < n; j++ {
			if at(j, j) != 0 {
				continue
			}
			twins, r := countTwins(at, n, j)
			if twins == 1 {
				perm[j], perm[r] = perm[r], perm[j]
				swapped = true
			} else if twins > 1 && !again {
				again = true
				start = j
			}
		}
		if !again {
			return
		}
		for j := start; !swapped && j < n; j++ {
			if at(j, j) != 0 {
				continue
			}
			if twins, r := countTwins(at, n, j); twins > 0 {
				perm[j], perm[r] = perm[r], perm[j]
				swapped = true
			}
		}
		if !swapped {
			return
		}
	}
}

// countTwins 统计列 col 中与对称位置同为 ±1 的行, 最多数到 2
func countTwins(at func(i, k int) float64, n, col int) (twins, row int) {
	row = -1
	for r := 0; r < n; r++ {
		if r == col || abs(at(r, col)) != 1 || abs(at(col, r)) != 1 {
			continue
		}
		twins++
		if twins >= 2 {
			return twins, row
		}
		row = r
	}
	return twins, row
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
