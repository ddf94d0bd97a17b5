package service

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/repository"
)

// topAreaLimit bounds how many ranked weak areas the selector considers.
const topAreaLimit = 5

// PracticeSet is the selector output. NoCandidates marks the valid terminal
// state where the catalog holds nothing for any ranked area.
type PracticeSet struct {
	Problems     []models.PracticeProblem `json:"problems"`
	NoCandidates bool                     `json:"no_candidates"`
}

// PracticeSelector builds a balanced, deterministic practice set from ranked
// weak areas and a skill level.
type PracticeSelector interface {
	Select(ctx context.Context, ranked []RankedWeakArea, skillLevel string, count int) (PracticeSet, error)
}

// NewPracticeSelector constructs a selector over the given catalog.
func NewPracticeSelector(catalog repository.PracticeCatalogRepository, logger zerolog.Logger) PracticeSelector {
	return &practiceSelector{
		catalog: catalog,
		logger:  logger.With().Str("component", "practice_selector").Logger(),
	}
}

type practiceSelector struct {
	catalog repository.PracticeCatalogRepository
	logger  zerolog.Logger
}

// difficultyTargets maps skill levels to the desired easy/medium/hard mix.
var difficultyTargets = map[string][3]float64{
	models.SkillLevelBeginner:     {0.6, 0.3, 0.1},
	models.SkillLevelIntermediate: {0.3, 0.5, 0.2},
	models.SkillLevelAdvanced:     {0.1, 0.4, 0.5},
}

var difficultyOrder = [3]string{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}

// difficultyFallbacks lists, per requested difficulty, the order in which
// substitutes are tried. Medium is the preferred fallback.
var difficultyFallbacks = map[string][]string{
	models.DifficultyEasy:   {models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard},
	models.DifficultyMedium: {models.DifficultyMedium, models.DifficultyEasy, models.DifficultyHard},
	models.DifficultyHard:   {models.DifficultyHard, models.DifficultyMedium, models.DifficultyEasy},
}

func (s *practiceSelector) Select(ctx context.Context, ranked []RankedWeakArea, skillLevel string, count int) (PracticeSet, error) {
	if count <= 0 || len(ranked) == 0 {
		return PracticeSet{NoCandidates: len(ranked) == 0}, nil
	}

	topK := len(ranked)
	if topK > topAreaLimit {
		topK = topAreaLimit
	}
	areas := ranked[:topK]

	tags := make([]string, 0, len(areas))
	for _, area := range areas {
		tags = append(tags, area.Tag)
	}

	catalog, err := s.catalog.Query(ctx, tags, "")
	if err != nil {
		return PracticeSet{}, err
	}

	// Candidate pool per area, id-ordered for determinism. Areas with an
	// empty pool are dropped before apportionment so their slots flow to the
	// remaining areas.
	pools := make([][]models.PracticeProblem, 0, len(areas))
	pooled := make([]RankedWeakArea, 0, len(areas))
	for _, area := range areas {
		var pool []models.PracticeProblem
		for _, problem := range catalog {
			if problem.Targets(area.Tag) {
				pool = append(pool, problem)
			}
		}
		if len(pool) > 0 {
			pools = append(pools, pool)
			pooled = append(pooled, area)
		}
	}
	if len(pooled) == 0 {
		return PracticeSet{NoCandidates: true}, nil
	}

	weights := make([]float64, len(pooled))
	for i, area := range pooled {
		weights[i] = area.Weight
	}
	slots := apportion(weights, count)

	targets, ok := difficultyTargets[skillLevel]
	if !ok {
		targets = difficultyTargets[models.SkillLevelBeginner]
	}

	used := map[uint]bool{}
	var result []models.PracticeProblem
	for i := range pooled {
		result = append(result, s.fillArea(pools[i], slots[i], targets, used)...)
	}

	// Slots an exhausted area could not fill are topped up from the
	// remaining pools in rank order.
	for len(result) < count {
		before := len(result)
		for i := range pooled {
			if len(result) >= count {
				break
			}
			if extra := pickProblem(pools[i], difficultyFallbacks[models.DifficultyMedium], used); extra != nil {
				result = append(result, *extra)
			}
		}
		if len(result) == before {
			break
		}
	}

	result = s.ensureVariety(result, pools, count, used)

	if len(result) == 0 {
		return PracticeSet{NoCandidates: true}, nil
	}
	return PracticeSet{Problems: result}, nil
}

// fillArea assigns the area's slot budget across difficulties according to
// the target mix, falling back to the nearest available difficulty.
func (s *practiceSelector) fillArea(pool []models.PracticeProblem, slots int, targets [3]float64, used map[uint]bool) []models.PracticeProblem {
	if slots <= 0 {
		return nil
	}

	perDifficulty := apportion(targets[:], slots)

	var picked []models.PracticeProblem
	for d, want := range perDifficulty {
		fallbacks := difficultyFallbacks[difficultyOrder[d]]
		for n := 0; n < want; n++ {
			if problem := pickProblem(pool, fallbacks, used); problem != nil {
				picked = append(picked, *problem)
			}
		}
	}
	return picked
}

// pickProblem returns the lowest-id unused problem along the fallback chain.
func pickProblem(pool []models.PracticeProblem, fallbacks []string, used map[uint]bool) *models.PracticeProblem {
	for _, difficulty := range fallbacks {
		for i := range pool {
			if pool[i].Difficulty != difficulty || used[pool[i].ID] {
				continue
			}
			used[pool[i].ID] = true
			return &pool[i]
		}
	}
	return nil
}

// ensureVariety enforces the postcondition that a set of two or more
// problems spans at least two difficulty levels when the catalog allows it.
func (s *practiceSelector) ensureVariety(result []models.PracticeProblem, pools [][]models.PracticeProblem, count int, used map[uint]bool) []models.PracticeProblem {
	if count < 2 || len(result) < 2 {
		return result
	}

	first := result[0].Difficulty
	uniform := true
	for _, problem := range result[1:] {
		if problem.Difficulty != first {
			uniform = false
			break
		}
	}
	if !uniform {
		return result
	}

	for _, pool := range pools {
		sorted := append([]models.PracticeProblem(nil), pool...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		for i := range sorted {
			if sorted[i].Difficulty == first || used[sorted[i].ID] {
				continue
			}
			used[result[len(result)-1].ID] = false
			used[sorted[i].ID] = true
			result[len(result)-1] = sorted[i]
			return result
		}
	}
	return result
}

// apportion distributes total slots proportionally to weights using the
// largest-remainder method. Remainder ties resolve in input (rank) order, and
// every positive weight receives at least one slot when total allows.
func apportion(weights []float64, total int) []int {
	counts := make([]int, len(weights))
	if total <= 0 || len(weights) == 0 {
		return counts
	}

	var sum float64
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}
	if sum == 0 {
		// Degenerate weights: spread evenly in rank order.
		for i := 0; total > 0; i = (i + 1) % len(counts) {
			counts[i]++
			total--
		}
		return counts
	}

	remainders := make([]float64, len(weights))
	assigned := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		exact := float64(total) * w / sum
		counts[i] = int(exact)
		remainders[i] = exact - float64(counts[i])
		assigned += counts[i]
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})

	for n := 0; assigned < total; n = (n + 1) % len(order) {
		i := order[n]
		if weights[i] <= 0 {
			continue
		}
		counts[i]++
		assigned++
	}

	// Guarantee every weighted area one slot when the budget covers them.
	positive := 0
	for _, w := range weights {
		if w > 0 {
			positive++
		}
	}
	if total >= positive {
		for i, w := range weights {
			if w <= 0 || counts[i] > 0 {
				continue
			}
			donor := 0
			for j := range counts {
				if counts[j] > counts[donor] {
					donor = j
				}
			}
			if counts[donor] > 1 {
				counts[donor]--
				counts[i]++
			}
		}
	}

	return counts
}
