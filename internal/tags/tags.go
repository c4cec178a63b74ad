// Package tags implements the "species,count" tag format and the matching
// rules used by search and bulk tagging. All species comparison is
// case-insensitive; the lowercase form is canonical on write.
package tags

import (
	"sort"
	"strconv"
	"strings"
)

// Parse splits a "species,count" tag into its parts. The species may
// itself contain commas only if the final segment is not numeric, so the
// split happens at the first comma and the remainder must parse as a
// positive integer. Malformed tags return ok=false and are skipped by
// callers rather than treated as errors.
func Parse(tag string) (species string, count int, ok bool) {
	idx := strings.Index(tag, ",")
	if idx < 0 {
		return "", 0, false
	}
	species = strings.ToLower(strings.TrimSpace(tag[:idx]))
	countStr := strings.TrimSpace(tag[idx+1:])
	if species == "" || countStr == "" {
		return "", 0, false
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 1 {
		return "", 0, false
	}
	return species, count, true
}

// Format renders the canonical "species,count" form.
func Format(species string, count int) string {
	return strings.ToLower(strings.TrimSpace(species)) + "," + strconv.Itoa(count)
}

// ParseAll folds a tag list into a species→count map, skipping malformed
// entries. Duplicate species keep the larger count.
func ParseAll(tagList []string) map[string]int {
	counts := make(map[string]int, len(tagList))
	for _, tag := range tagList {
		species, count, ok := Parse(tag)
		if !ok {
			continue
		}
		if count > counts[species] {
			counts[species] = count
		}
	}
	return counts
}

// Criteria is a species→minimum-count requirement set.
type Criteria map[string]int

// MatchesCriteria reports whether a file's tag list satisfies every
// requirement: for each species in the criteria, the file must carry a
// tag with at least the required count. Empty criteria match every file.
func MatchesCriteria(tagList []string, criteria Criteria) bool {
	counts := ParseAll(tagList)
	for species, minCount := range criteria {
		if counts[strings.ToLower(strings.TrimSpace(species))] < minCount {
			return false
		}
	}
	return true
}

// HasAnySpecies reports whether the tag list contains at least one of the
// given species, at any count. An empty species set never matches.
func HasAnySpecies(tagList []string, species []string) bool {
	if len(species) == 0 {
		return false
	}
	counts := ParseAll(tagList)
	for _, s := range species {
		if counts[strings.ToLower(strings.TrimSpace(s))] > 0 {
			return true
		}
	}
	return false
}

// Detection is one model detection: a species label and its confidence.
type Detection struct {
	Species    string  `json:"species"`
	Confidence float64 `json:"confidence"`
}

// Summary aggregates detections per species: occurrence count and the
// highest confidence seen.
type Summary struct {
	counts     map[string]int
	confidence map[string]float64
}

// Summarize folds model detections into a per-species summary. The tag
// count is the number of detection occurrences; confidence is tracked
// separately and never encoded into the tag string.
func Summarize(detections []Detection) Summary {
	s := Summary{
		counts:     make(map[string]int),
		confidence: make(map[string]float64),
	}
	for _, d := range detections {
		species := strings.ToLower(strings.TrimSpace(d.Species))
		if species == "" {
			continue
		}
		s.counts[species]++
		if d.Confidence > s.confidence[species] {
			s.confidence[species] = d.Confidence
		}
	}
	return s
}

// FromTags rebuilds a Summary from stored tag strings (confidence unknown).
func FromTags(tagList []string) Summary {
	s := Summary{
		counts:     make(map[string]int),
		confidence: make(map[string]float64),
	}
	for species, count := range ParseAll(tagList) {
		s.counts[species] = count
	}
	return s
}

// Tags returns the canonical sorted tag list.
func (s Summary) Tags() []string {
	out := make([]string, 0, len(s.counts))
	for species, count := range s.counts {
		out = append(out, Format(species, count))
	}
	sort.Strings(out)
	return out
}

// Species returns the sorted species list.
func (s Summary) Species() []string {
	out := make([]string, 0, len(s.counts))
	for species := range s.counts {
		out = append(out, species)
	}
	sort.Strings(out)
	return out
}

// Count returns the occurrence count for a species (0 if absent).
func (s Summary) Count(species string) int {
	return s.counts[strings.ToLower(strings.TrimSpace(species))]
}

// Confidence returns the best confidence seen for a species.
func (s Summary) Confidence(species string) float64 {
	return s.confidence[strings.ToLower(strings.TrimSpace(species))]
}

// TopSpecies returns the species with the highest confidence. Ties and
// zero-confidence summaries fall back to alphabetical order so the result
// is deterministic. Returns "" for an empty summary.
func (s Summary) TopSpecies() string {
	best := ""
	bestConf := -1.0
	for _, species := range s.Species() {
		if conf := s.confidence[species]; conf > bestConf {
			best = species
			bestConf = conf
		}
	}
	return best
}

// Merge adds the counts from other into s. The larger confidence wins.
func (s Summary) Merge(other Summary) {
	for species, count := range other.counts {
		s.counts[species] += count
		if other.confidence[species] > s.confidence[species] {
			s.confidence[species] = other.confidence[species]
		}
	}
}

// Remove deletes the given species from the summary.
func (s Summary) Remove(species []string) {
	for _, sp := range species {
		key := strings.ToLower(strings.TrimSpace(sp))
		delete(s.counts, key)
		delete(s.confidence, key)
	}
}
