package puzzle

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

const lowercase = "abcdefghijklmnopqrstuvwxyz"

// randBetween returns a random int in [min, max].
func randBetween(min, max int) int {
	return min + rand.Intn(max-min+1)
}

// CrystalSumGenerator: given a list of numbers, sum those divisible by 3 or 5.
type CrystalSumGenerator struct{}

func (CrystalSumGenerator) Generate(params Params) (Instance, error) {
	minCount := params.IntOr("min_count", 50)
	maxCount := params.IntOr("max_count", 100)
	rangeVal := params.IntOr("range", 1000)

	count := randBetween(minCount, maxCount)
	lines := make([]string, count)
	total := 0
	for i := 0; i < count; i++ {
		n := randBetween(1, rangeVal)
		if n%3 == 0 || n%5 == 0 {
			total += n
		}
		lines[i] = strconv.Itoa(n)
	}

	return Instance{
		Input:  strings.Join(lines, "\n"),
		Answer: strconv.Itoa(total),
	}, nil
}

// PatternCounterGenerator: count occurrences of a pattern in text,
// overlaps included.
type PatternCounterGenerator struct{}

func (PatternCounterGenerator) Generate(params Params) (Instance, error) {
	textLength := params.IntOr("text_length", 500)
	patternLength := params.IntOr("pattern_length", 5)

	pattern := randomLowercase(patternLength)

	// Build text with a known number of insertions; random filler may create
	// extra occurrences, so the answer is recounted over the final text.
	var sb strings.Builder
	remaining := textLength
	insertions := randBetween(5, 15)
	for i := 0; i < insertions; i++ {
		if remaining > patternLength {
			fillerMax := remaining - patternLength
			if fillerMax > 30 {
				fillerMax = 30
			}
			if fillerMax >= 5 {
				filler := randBetween(5, fillerMax)
				sb.WriteString(randomLowercase(filler))
				remaining -= filler
			}
		}
		sb.WriteString(pattern)
		remaining -= patternLength
	}
	if remaining > 0 {
		sb.WriteString(randomLowercase(remaining))
	}
	text := sb.String()

	count := CountOverlapping(text, pattern)

	return Instance{
		Input:  fmt.Sprintf("Pattern: %s\nText:\n%s", pattern, text),
		Answer: strconv.Itoa(count),
	}, nil
}

// CountOverlapping counts occurrences of pattern in text, overlaps included.
func CountOverlapping(text, pattern string) int {
	count := 0
	for i := 0; i+len(pattern) <= len(text); i++ {
		if text[i:i+len(pattern)] == pattern {
			count++
		}
	}
	return count
}

func randomLowercase(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = lowercase[rand.Intn(len(lowercase))]
	}
	return string(b)
}

// GridPathGenerator: maximum sum path from top-left to bottom-right moving
// only right or down.
type GridPathGenerator struct{}

func (GridPathGenerator) Generate(params Params) (Instance, error) {
	rows := params.IntOr("rows", 10)
	cols := params.IntOr("cols", 10)
	maxValue := params.IntOr("max_value", 100)

	grid := make([][]int, rows)
	for i := range grid {
		grid[i] = make([]int, cols)
		for j := range grid[i] {
			grid[i][j] = randBetween(1, maxValue)
		}
	}

	maxSum := MaxPathSum(grid)

	lines := make([]string, rows)
	for i, row := range grid {
		cells := make([]string, cols)
		for j, v := range row {
			cells[j] = strconv.Itoa(v)
		}
		lines[i] = strings.Join(cells, " ")
	}

	return Instance{
		Input:  strings.Join(lines, "\n"),
		Answer: strconv.Itoa(maxSum),
	}, nil
}

// MaxPathSum computes the maximum right/down path sum by dynamic programming.
func MaxPathSum(grid [][]int) int {
	rows, cols := len(grid), len(grid[0])
	dp := make([][]int, rows)
	for i := range dp {
		dp[i] = make([]int, cols)
	}
	dp[0][0] = grid[0][0]
	for j := 1; j < cols; j++ {
		dp[0][j] = dp[0][j-1] + grid[0][j]
	}
	for i := 1; i < rows; i++ {
		dp[i][0] = dp[i-1][0] + grid[i][0]
	}
	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			best := dp[i-1][j]
			if dp[i][j-1] > best {
				best = dp[i][j-1]
			}
			dp[i][j] = best + grid[i][j]
		}
	}
	return dp[rows-1][cols-1]
}

// SequenceFinderGenerator: given the first terms of a sequence, find the
// next three.
type SequenceFinderGenerator struct{}

func (SequenceFinderGenerator) Generate(params Params) (Instance, error) {
	length := params.IntOr("sequence_length", 8)

	kinds := []string{"arithmetic", "geometric", "fibonacci", "squares", "cubes"}
	kind := kinds[rand.Intn(len(kinds))]

	var sequence []int
	switch kind {
	case "arithmetic":
		start := randBetween(1, 20)
		diff := randBetween(2, 10)
		for i := 0; i < length+3; i++ {
			sequence = append(sequence, start+i*diff)
		}
	case "geometric":
		start := randBetween(2, 5)
		ratio := randBetween(2, 3)
		term := start
		for i := 0; i < length+3; i++ {
			sequence = append(sequence, term)
			term *= ratio
		}
	case "fibonacci":
		a, b := randBetween(1, 5), randBetween(1, 5)
		sequence = []int{a, b}
		for len(sequence) < length+3 {
			sequence = append(sequence, sequence[len(sequence)-1]+sequence[len(sequence)-2])
		}
	case "squares":
		start := randBetween(1, 10)
		for i := 0; i < length+3; i++ {
			sequence = append(sequence, (start+i)*(start+i))
		}
	default: // cubes
		start := randBetween(1, 5)
		for i := 0; i < length+3; i++ {
			n := start + i
			sequence = append(sequence, n*n*n)
		}
	}

	return Instance{
		Input:  joinInts(sequence[:length], " "),
		Answer: joinInts(sequence[length:length+3], " "),
	}, nil
}

func joinInts(nums []int, sep string) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, sep)
}

// TowerBlocksGenerator: maximum value obtainable by removing a contiguous run
// of blocks from the tower (Kadane with an empty-run floor of zero).
type TowerBlocksGenerator struct{}

func (TowerBlocksGenerator) Generate(params Params) (Instance, error) {
	height := params.IntOr("height", 15)
	maxValue := params.IntOr("max_value", 50)

	blocks := make([]int, height)
	lines := make([]string, height)
	for i := range blocks {
		blocks[i] = randBetween(-maxValue/2, maxValue)
		lines[i] = strconv.Itoa(blocks[i])
	}

	return Instance{
		Input:  strings.Join(lines, "\n"),
		Answer: strconv.Itoa(MaxBlockValue(blocks)),
	}, nil
}

// MaxBlockValue is the Kadane variant with the option of removing nothing.
func MaxBlockValue(blocks []int) int {
	maxSum, current := 0, 0
	for _, v := range blocks {
		current += v
		if current < 0 {
			current = 0
		}
		if current > maxSum {
			maxSum = current
		}
	}
	return maxSum
}
