package summarize

import (
	"sort"
	"strings"
	"time"

	"whatsnew/internal/config"
)

// DefaultSectionOrder is the section ordering used when configuration does
// not override it.
var DefaultSectionOrder = []string{
	"Breaking changes",
	"Features",
	"Fixes",
	"Performance",
	"Security",
	"Docs",
}

var classToSection = map[Classification]string{
	ClassBreaking: "Breaking changes",
	ClassFeature:  "Features",
	ClassFix:      "Fixes",
	ClassPerf:     "Performance",
	ClassSecurity: "Security",
	ClassDocs:     "Docs",
	ClassInternal: "Internal",
}

var classLabels = map[Classification]string{
	ClassBreaking: "Breaking change",
	ClassFeature:  "Feature",
	ClassFix:      "Fix",
	ClassPerf:     "Improvement",
	ClassSecurity: "Security",
	ClassDocs:     "Docs",
	ClassInternal: "Internal",
}

// internalDropExempt classifications survive the internal-visibility drop:
// perf and security work is externally relevant even when internal-origin.
var internalDropExempt = map[Classification]bool{
	ClassPerf:     true,
	ClassSecurity: true,
}

// SectionItem is one rendered changelog entry.
type SectionItem struct {
	Summary string   `json:"summary"`
	Refs    []string `json:"refs"`
	Labels  []string `json:"labels"`
}

// Section is a titled, ordered group of changelog entries.
type Section struct {
	Title string        `json:"title"`
	Items []SectionItem `json:"items"`
}

// Result is the reduce step's output. Sections are assembled fresh each
// run; nothing persists between runs except the cache.
type Result struct {
	Sections        []Section
	DroppedInternal int
	GeneratedAt     time.Time
}

// RunReduce aggregates mini-summaries into ordered, deduplicated,
// capped sections.
func RunReduce(cfg *config.Configuration, items []MapItem, now time.Time) Result {
	sectionOrder := DefaultSectionOrder
	if len(cfg.SectionOrder) > 0 {
		sectionOrder = cfg.SectionOrder
	}
	maxItems := cfg.SectionMaxItems
	if maxItems <= 0 {
		maxItems = 5
	}

	visible := make([]MapItem, 0, len(items))
	dropped := 0
	for _, item := range items {
		if cfg.DropInternal && item.Visibility == VisibilityInternal && !internalDropExempt[item.Classification] {
			dropped++
			continue
		}
		visible = append(visible, item)
	}

	deduped := dedupeItems(visible, cfg.DedupeBy)

	buckets := map[string][]MapItem{}
	for _, item := range deduped {
		section, ok := classToSection[item.Classification]
		if !ok {
			section = "Fixes"
		}
		buckets[section] = append(buckets[section], item)
	}

	var sections []Section
	for _, title := range sectionOrder {
		bucket := buckets[title]
		if len(bucket) == 0 {
			continue
		}
		sortSectionItems(bucket)
		if len(bucket) > maxItems {
			bucket = bucket[:maxItems]
		}
		section := Section{Title: title}
		for _, item := range bucket {
			section.Items = append(section.Items, SectionItem{
				Summary: item.Summary,
				Refs:    item.Refs,
				Labels:  []string{labelFor(item.Classification)},
			})
		}
		sections = append(sections, section)
	}

	return Result{
		Sections:        sections,
		DroppedInternal: dropped,
		GeneratedAt:     now.UTC(),
	}
}

func labelFor(class Classification) string {
	if label, ok := classLabels[class]; ok {
		return label
	}
	return capitalize(string(class))
}

// dedupeItems collapses duplicates keeping the first occurrence. The key is
// classification + normalized summary by default, or sorted refs +
// normalized summary for the "refs" variant.
func dedupeItems(items []MapItem, dedupeBy string) []MapItem {
	seen := map[string]bool{}
	var result []MapItem
	for _, item := range items {
		var key string
		if dedupeBy == "refs" {
			refs := append([]string(nil), item.Refs...)
			sort.Strings(refs)
			key = strings.Join(refs, ",") + "\x00" + normalizeSummary(item.Summary)
		} else {
			key = string(item.Classification) + "\x00" + normalizeSummary(item.Summary)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, item)
	}
	return result
}

// normalizeSummary lowers case and collapses whitespace so near-identical
// blurbs compare equal.
func normalizeSummary(summary string) string {
	return strings.Join(strings.Fields(strings.ToLower(summary)), " ")
}

// sortSectionItems orders a bucket deterministically: pull-request-sourced
// items before commit-sourced items, then descending reference count, then
// normalized summary text. None of these keys depend on map-phase
// completion time.
func sortSectionItems(items []MapItem) {
	sort.SliceStable(items, func(i, j int) bool {
		iPR := items[i].SourceType == SourcePullRequest
		jPR := items[j].SourceType == SourcePullRequest
		if iPR != jPR {
			return iPR
		}
		if len(items[i].Refs) != len(items[j].Refs) {
			return len(items[i].Refs) > len(items[j].Refs)
		}
		return normalizeSummary(items[i].Summary) < normalizeSummary(items[j].Summary)
	})
}
