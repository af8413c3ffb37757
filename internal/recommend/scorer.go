package recommend

import (
	"sort"

	"example.com/ai-shopmate/backend/internal/models"
)

// MaxResults ограничивает длину выдачи рекомендаций.
const MaxResults = 4

// Result: товар из пула с рассчитанной релевантностью.
type Result struct {
	models.Product
	Relevance int `json:"relevance"`
}

// Score считает релевантность кандидата: число общих тегов плюс бонус за совпадение категории.
func Score(reference, candidate models.Product) int {
	refTags := make(map[string]struct{}, len(reference.Tags))
	for _, tag := range reference.Tags {
		refTags[tag] = struct{}{}
	}

	score := 0
	seen := make(map[string]struct{}, len(candidate.Tags))
	for _, tag := range candidate.Tags {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		if _, ok := refTags[tag]; ok {
			score++
		}
	}

	if candidate.Category == reference.Category {
		score++
	}

	return score
}

// Recommend возвращает до MaxResults товаров, похожих на reference.
func Recommend(reference *models.Product, pool []models.Product) []Result {
	return RecommendN(reference, pool, MaxResults)
}

// RecommendN работает как Recommend, но с лимитом в диапазоне 1..MaxResults.
// Пустой пул или nil reference дают пустой результат.
func RecommendN(reference *models.Product, pool []models.Product, limit int) []Result {
	results := []Result{}
	if reference == nil || len(pool) == 0 {
		return results
	}

	if limit < 1 || limit > MaxResults {
		limit = MaxResults
	}

	for _, candidate := range pool {
		if candidate.ID == reference.ID {
			continue
		}
		score := Score(*reference, candidate)
		if score == 0 {
			continue
		}
		results = append(results, Result{Product: candidate, Relevance: score})
	}

	// ties keep catalog order
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
