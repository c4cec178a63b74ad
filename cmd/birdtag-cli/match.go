package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nlawson/birdtag/internal/tags"
)

var (
	matchTagsFile string
	matchCriteria string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Evaluate tag criteria against an exported tags file",
	Long: `Match reads a JSON file mapping file keys to tag lists, for example:

  {"species/crow/a.jpg": ["crow,3"], "uploads/b.wav": ["pigeon,1"]}

and prints the keys whose tags satisfy the criteria. Criteria are
comma-separated "species=minCount" pairs; all must hold (AND).`,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVarP(&matchTagsFile, "tags-file", "f", "", "JSON file mapping file keys to tag lists")
	matchCmd.Flags().StringVarP(&matchCriteria, "criteria", "c", "", `Criteria like "crow=2,pigeon=1"`)
	matchCmd.MarkFlagRequired("tags-file")
	matchCmd.MarkFlagRequired("criteria")
}

func runMatch(cmd *cobra.Command, args []string) error {
	criteria, err := parseCriteria(matchCriteria)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(matchTagsFile)
	if err != nil {
		return fmt.Errorf("read tags file: %w", err)
	}
	var fileTags map[string][]string
	if err := json.Unmarshal(data, &fileTags); err != nil {
		return fmt.Errorf("parse tags file: %w", err)
	}

	var matched []string
	for fileKey, tagList := range fileTags {
		if tags.MatchesCriteria(tagList, criteria) {
			matched = append(matched, fileKey)
		}
	}
	sort.Strings(matched)

	for _, fileKey := range matched {
		fmt.Fprintln(cmd.OutOrStdout(), fileKey)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d files matched\n", len(matched), len(fileTags))
	return nil
}

// parseCriteria parses "crow=2,pigeon=1" into tag criteria. A bare
// species name means minimum count 1.
func parseCriteria(raw string) (tags.Criteria, error) {
	criteria := tags.Criteria{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		species, countStr, hasCount := strings.Cut(pair, "=")
		species = strings.ToLower(strings.TrimSpace(species))
		if species == "" {
			return nil, fmt.Errorf("empty species in criteria %q", raw)
		}

		count := 1
		if hasCount {
			n, err := strconv.Atoi(strings.TrimSpace(countStr))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("bad count for %s in criteria %q", species, raw)
			}
			count = n
		}
		criteria[species] = count
	}
	if len(criteria) == 0 {
		return nil, fmt.Errorf("criteria is empty")
	}
	return criteria, nil
}
