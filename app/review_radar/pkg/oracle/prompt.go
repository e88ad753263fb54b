package oracle

import (
	"fmt"
	"slices"
	"strings"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
)

// SeedTopics 抽取时提供给模型的种子话题
var SeedTopics = []string{
	"delivery_issue", "food_quality", "delivery_partner_behavior",
	"app_functionality", "payment_issue", "customer_service",
	"restaurant_availability", "order_accuracy", "packaging_quality",
	"delivery_time", "app_performance", "pricing_concern",
}

const extractionTpl = `You are an expert at extracting topics from food delivery app reviews.

SEED TOPICS: %s

Extract topics from these reviews. Each topic should represent a specific user concern, request, or feedback.

RULES:
1. Use seed topics when applicable, but identify new topics as needed
2. Be specific but not overly granular (e.g., "delivery_late" not "delivery_5_minutes_late")
3. Use snake_case format for topic names
4. Count frequency of each topic

REVIEWS: %s

Return JSON format:
{
    "topic_name": {
        "frequency": int,
        "keywords": ["keyword1", "keyword2"],
        "sample_reviews": ["review1", "review2"]
    }
}`

const consolidationTpl = `TASK: Consolidate similar topics to avoid fragmentation

TOPICS TO CONSOLIDATE:
%s

CONSOLIDATION RULES:
1. Merge topics that refer to the same underlying issue
2. Examples of topics that should be merged:
   - "delivery_late", "slow_delivery", "delivery_delayed" → "delivery_time_issue"
   - "rude_delivery_partner", "delivery_guy_rude", "impolite_delivery" → "delivery_partner_behavior"
3. Keep distinct topics separate (don't over-consolidate)
4. Use clear, descriptive names for consolidated topics

REQUIRED OUTPUT FORMAT:
{
    "consolidated_topics": {
        "final_topic_name": total_frequency
    },
    "topic_mapping": {
        "original_topic": "consolidated_topic_name"
    }
}`

// ExtractionPrompt 构造单日话题抽取提示词
func ExtractionPrompt(seeds []string, reviews []model.Review) string {
	lines := make([]string, 0, len(reviews))
	for _, r := range reviews {
		lines = append(lines, fmt.Sprintf("Rating: %d - %s", r.Rating, r.Content))
	}
	return fmt.Sprintf(extractionTpl, strings.Join(seeds, ", "), strings.Join(lines, "\n"))
}

// ConsolidationPrompt 构造话题合并提示词，只列出频次为正的话题，按频次降序
func ConsolidationPrompt(freqs map[string]int) string {
	return fmt.Sprintf(consolidationTpl, TopicsText(freqs))
}

// TopicsText 返回 "topic: freq" 逗号拼接的文本
func TopicsText(freqs map[string]int) string {
	topics := make([]string, 0, len(freqs))
	for t, f := range freqs {
		if f > 0 {
			topics = append(topics, t)
		}
	}
	slices.SortFunc(topics, func(a, b string) int {
		if freqs[a] != freqs[b] {
			return freqs[b] - freqs[a]
		}
		return strings.Compare(a, b)
	})

	parts := make([]string, 0, len(topics))
	for _, t := range topics {
		parts = append(parts, fmt.Sprintf("%s: %d", t, freqs[t]))
	}
	return strings.Join(parts, ", ")
}
