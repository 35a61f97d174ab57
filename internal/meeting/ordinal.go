package meeting

import "fmt"

var ordinals = map[int]string{
	1: "first", 2: "second", 3: "third", 4: "fourth", 5: "fifth",
	6: "sixth", 7: "seventh", 8: "eighth", 9: "ninth", 10: "tenth",
}

// Ordinal 轮次序数词，仅用于提示词替换
// 1..10 为英文序数词，其余为 round-N
func Ordinal(n int) string {
	if s, ok := ordinals[n]; ok {
		return s
	}
	return fmt.Sprintf("round-%d", n)
}
