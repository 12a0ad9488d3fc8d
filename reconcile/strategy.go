package reconcile

import (
	"fmt"
	"strings"
)

// Distribution of images which did not get valid anchor.
// ENUM(none, append, even, cluster)
type Strategy int

const (
	// StrategyNone means every image kept its anchor.
	StrategyNone Strategy = iota
	// StrategyAppend leaves unplaced images after the last element.
	StrategyAppend
	// StrategyEven spreads unplaced images over the document with equal stride.
	StrategyEven
	// StrategyCluster gathers unplaced images around landmark positions.
	StrategyCluster
)

var strategyNames = []string{"none", "append", "even", "cluster"}

// StrategyNames returns list of possible string values of Strategy.
func StrategyNames() []string {
	return append([]string(nil), strategyNames...)
}

func (s Strategy) String() string {
	if s.IsValid() {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

func (s Strategy) IsValid() bool {
	return s >= StrategyNone && int(s) < len(strategyNames)
}

// ParseStrategy attempts to convert string to Strategy, case insensitive.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return Strategy(i), nil
		}
	}
	return StrategyNone, fmt.Errorf("%s is not a valid Strategy, try [%s]", name, strings.Join(strategyNames, ", "))
}

func (s Strategy) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%d is not a valid Strategy", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ChooseStrategy is the single distribution policy table. A couple of
// strays go to the end, moderate numbers are spread evenly, larger groups
// are clustered and when there are more images than half of the elements
// there is no sensible spread left.
func ChooseStrategy(unplaced, count int) Strategy {
	switch {
	case unplaced <= 0:
		return StrategyNone
	case unplaced <= 2:
		return StrategyAppend
	case unplaced <= count/3:
		return StrategyEven
	case unplaced <= count/2:
		return StrategyCluster
	default:
		return StrategyAppend
	}
}

// evenPositions returns n anchors with equal stride, k-th (from 1) image goes
// to min(k*stride, count-1).
func evenPositions(n, count int) []int {
	stride := max(count/(n+1), 1)
	res := make([]int, n)
	for i := range res {
		res[i] = min((i+1)*stride, count-1)
	}
	return res
}

// clusterPositions returns n anchors cycling over landmarks: quarter points
// for long documents, first and last element otherwise.
func clusterPositions(n, count int) []int {
	landmarks := []int{0, count - 1}
	if count > 10 {
		landmarks = []int{count / 4, count / 2, 3 * count / 4}
	}
	res := make([]int, n)
	for i := range res {
		res[i] = landmarks[i%len(landmarks)]
	}
	return res
}
