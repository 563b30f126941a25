package helper

import (
	"time"

	"golang.org/x/exp/rand"
)

// NewRand 返回一个以纳秒时间播种的独立随机源（避免全局源竞争）
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
}

// ShuffledRange 生成 [1..n] 的均匀随机排列（Fisher-Yates）
func ShuffledRange(r *rand.Rand, n int) []int {
	seq := make([]int, n)
	for i := range seq {
		seq[i] = i + 1
	}
	r.Shuffle(n, func(i, j int) { seq[i], seq[j] = seq[j], seq[i] })
	return seq
}

// GenerateRandNum 返回 [min,max) 区间内的随机整数
func GenerateRandNum(r *rand.Rand, min, max int) int {
	return min + r.Intn(max-min)
}
