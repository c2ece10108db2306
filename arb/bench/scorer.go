package bench

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Scoring model: standard samples are each scored 0-1 and averaged into a
// 1.0 point main score; the bonus sample has its own granular rubric worth
// another 1.0 point, for 2.0 points total.

// StandardWeights must sum to 1.0.
var StandardWeights = map[string]float64{
	"decoded_c2":      0.40,
	"techniques":      0.30,
	"file_type":       0.10,
	"encoded_strings": 0.10,
	"c2_protocol":     0.10,
}

// BonusWeights must sum to 1.0. The bonus sample has crypto recovery,
// string decryption, and anti-analysis identification on top of the
// standard fields, so it gets its own deeper rubric.
var BonusWeights = map[string]float64{
	"decoded_c2":             0.15,
	"encryption_algorithm":   0.10,
	"encryption_key":         0.15,
	"encryption_key_storage": 0.05,
	"techniques":             0.15,
	"decoded_strings":        0.15,
	"anti_analysis":          0.10,
	"file_type":              0.03,
	"encoded_strings":        0.02,
	"c2_protocol":            0.05,
}

// bonusFieldOrder is the rubric order used when rendering the bonus table.
var bonusFieldOrder = []string{
	"decoded_c2",
	"encryption_algorithm",
	"encryption_key",
	"encryption_key_storage",
	"techniques",
	"decoded_strings",
	"anti_analysis",
	"file_type",
	"encoded_strings",
	"c2_protocol",
}

const (
	// HallucinationPenalty is charged per extra technique claim.
	HallucinationPenalty = 0.05
	// BonusHallucinationPenalty is lighter per-claim (more techniques).
	BonusHallucinationPenalty = 0.03
)

var bonusSamplePattern = regexp.MustCompile(`(?i)level13`)

const (
	TierStandard = "standard"
	TierBonus    = "bonus"
)

// ScoreResult is the per-sample scoring breakdown.
type ScoreResult struct {
	Tier                   string             `json:"tier"`
	FieldScores            map[string]float64 `json:"field_scores"`
	HallucinatedTechniques []string           `json:"hallucinated_techniques"`
	MissingTechniques      []string           `json:"missing_techniques"`
	HallucinationPenalty   float64            `json:"hallucination_penalty"`
	WeightedScore          float64            `json:"weighted_score"`
	FinalScore             float64            `json:"final_score"`
	Sample                 string             `json:"sample,omitempty"`
}

// ScoreSample scores an agent verdict against ground truth, picking the
// standard or bonus rubric by sample name.
func ScoreSample(gt, agent map[string]any, gtPath string) *ScoreResult {
	if isBonus(gt, gtPath) {
		return scoreBonus(gt, agent)
	}
	return scoreStandard(gt, agent)
}

// isBonus detects the bonus sample by name, falling back to the ground
// truth file stem when the sample field is absent.
func isBonus(gt map[string]any, gtPath string) bool {
	name, _ := gt["sample"].(string)
	if name == "" {
		base := filepath.Base(gtPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return bonusSamplePattern.MatchString(name)
}

func scoreStandard(gt, agent map[string]any) *ScoreResult {
	result := newScoreResult(TierStandard)

	result.FieldScores["decoded_c2"] = scoreDecodedC2(gt["decoded_c2"], agent["decoded_c2"])

	tech, hallucinated, missing := scoreSetOverlap(gt["techniques"], agent["techniques"])
	result.FieldScores["techniques"] = tech
	result.HallucinatedTechniques = hallucinated
	result.MissingTechniques = missing

	result.FieldScores["file_type"] = scoreExact(gt["file_type"], agent["file_type"])
	result.FieldScores["encoded_strings"] = scoreExact(gt["encoded_strings"], agent["encoded_strings"])
	result.FieldScores["c2_protocol"] = scoreExact(gt["c2_protocol"], agent["c2_protocol"])

	result.finish(StandardWeights, HallucinationPenalty)
	return result
}

func scoreBonus(gt, agent map[string]any) *ScoreResult {
	result := newScoreResult(TierBonus)

	result.FieldScores["decoded_c2"] = scoreDecodedC2(gt["decoded_c2"], agent["decoded_c2"])

	result.FieldScores["encryption_algorithm"] = scoreExact(
		nestedOrEmpty(gt, "encryption_details", "algorithm"),
		nestedOrEmpty(agent, "encryption_details", "algorithm"),
	)
	result.FieldScores["encryption_key"] = scoreExact(
		nestedOrEmpty(gt, "encryption_details", "key"),
		nestedOrEmpty(agent, "encryption_details", "key"),
	)

	// Partial credit: agent mentions "xor" -> 0.5, mentions "0xa5" -> 0.5
	gtKS := strings.ToLower(asString(nestedOrEmpty(gt, "encryption_details", "key_storage")))
	agentKS := strings.ToLower(asString(nestedOrEmpty(agent, "encryption_details", "key_storage")))
	result.FieldScores["encryption_key_storage"] = scoreKeyStorage(gtKS, agentKS)

	tech, hallucinated, missing := scoreSetOverlap(gt["techniques"], agent["techniques"])
	result.FieldScores["techniques"] = tech
	result.HallucinatedTechniques = hallucinated
	result.MissingTechniques = missing

	result.FieldScores["decoded_strings"] = scoreDecodedStrings(gt["decoded_strings"], agent["decoded_strings"])

	aa, _, _ := scoreSetOverlap(gt["anti_analysis"], agent["anti_analysis"])
	result.FieldScores["anti_analysis"] = aa

	result.FieldScores["file_type"] = scoreExact(gt["file_type"], agent["file_type"])
	result.FieldScores["encoded_strings"] = scoreExact(gt["encoded_strings"], agent["encoded_strings"])
	result.FieldScores["c2_protocol"] = scoreExact(gt["c2_protocol"], agent["c2_protocol"])

	result.finish(BonusWeights, BonusHallucinationPenalty)
	return result
}

func newScoreResult(tier string) *ScoreResult {
	return &ScoreResult{
		Tier:                   tier,
		FieldScores:            map[string]float64{},
		HallucinatedTechniques: []string{},
		MissingTechniques:      []string{},
	}
}

// finish computes the weighted sum and applies the per-claim hallucination
// penalty, flooring the final score at zero.
func (r *ScoreResult) finish(weights map[string]float64, perClaimPenalty float64) {
	weighted := 0.0
	for field, w := range weights {
		weighted += r.FieldScores[field] * w
	}
	r.WeightedScore = round4(weighted)

	penalty := perClaimPenalty * float64(len(r.HallucinatedTechniques))
	r.HallucinationPenalty = round4(penalty)
	r.FinalScore = round4(math.Max(0.0, weighted-penalty))
}

// normalizeC2 lowercases, trims, and strips trailing slashes. The second
// return distinguishes a missing value from an empty one.
func normalizeC2(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.ToLower(strings.TrimSpace(asString(v)))
	return strings.TrimRight(s, "/"), true
}

func scoreDecodedC2(gtVal, agentVal any) float64 {
	gtNorm, gtOK := normalizeC2(gtVal)
	agentNorm, agentOK := normalizeC2(agentVal)

	if gtOK == agentOK && gtNorm == agentNorm {
		return 1.0
	}
	if !gtOK || !agentOK {
		return 0.0
	}

	// Partial: host/IP matches but port/path differs
	if c2Host(gtNorm) == c2Host(agentNorm) {
		return 0.5
	}
	return 0.0
}

func c2Host(addr string) string {
	parts := strings.Split(addr, "://")
	host := parts[len(parts)-1]
	host = strings.SplitN(host, "/", 2)[0]
	return strings.SplitN(host, ":", 2)[0]
}

// scoreSetOverlap computes Jaccard credit plus the sorted extra and
// missing items. Two empty sets count as full credit.
func scoreSetOverlap(gtItems, agentItems any) (float64, []string, []string) {
	gtSet := toStringSet(gtItems)
	agentSet := toStringSet(agentItems)

	extra := setDifference(agentSet, gtSet)
	missing := setDifference(gtSet, agentSet)

	if len(gtSet) == 0 && len(agentSet) == 0 {
		return 1.0, extra, missing
	}
	if len(gtSet) == 0 {
		return 0.0, extra, missing
	}

	inter := 0
	for item := range agentSet {
		if gtSet[item] {
			inter++
		}
	}
	union := len(gtSet) + len(agentSet) - inter
	return float64(inter) / float64(union), extra, missing
}

func toStringSet(v any) map[string]bool {
	set := make(map[string]bool)
	switch items := v.(type) {
	case []any:
		for _, it := range items {
			set[asString(it)] = true
		}
	case []string:
		for _, it := range items {
			set[it] = true
		}
	}
	return set
}

func setDifference(a, b map[string]bool) []string {
	diff := []string{}
	for item := range a {
		if !b[item] {
			diff = append(diff, item)
		}
	}
	sort.Strings(diff)
	return diff
}

// scoreExact compares values for equality: case-insensitive trimmed for
// string pairs, deep equality otherwise. Two absent values match.
func scoreExact(gtVal, agentVal any) float64 {
	if gtVal == nil && agentVal == nil {
		return 1.0
	}
	gtStr, gtIsStr := gtVal.(string)
	agentStr, agentIsStr := agentVal.(string)
	if gtIsStr && agentIsStr {
		if strings.EqualFold(strings.TrimSpace(gtStr), strings.TrimSpace(agentStr)) {
			return 1.0
		}
		return 0.0
	}
	if reflect.DeepEqual(gtVal, agentVal) {
		return 1.0
	}
	return 0.0
}

func scoreKeyStorage(gtKS, agentKS string) float64 {
	score := 0.0
	switch {
	case gtKS != "" && agentKS != "":
		if strings.Contains(agentKS, "xor") {
			score += 0.5
		}
		if strings.Contains(agentKS, "0xa5") || strings.Contains(agentKS, "a5") {
			score += 0.5
		}
	case gtKS == "" && agentKS == "":
		score = 1.0
	}
	return math.Min(score, 1.0)
}

// scoreDecodedStrings credits the fraction of ground truth entries the
// agent recovered exactly.
func scoreDecodedStrings(gtVal, agentVal any) float64 {
	gtDS, _ := gtVal.(map[string]any)
	agentDS, _ := agentVal.(map[string]any)

	if len(gtDS) == 0 {
		if len(agentDS) == 0 {
			return 1.0
		}
		return 0.0
	}

	matched := 0
	for key, want := range gtDS {
		got, ok := agentDS[key]
		if ok && got != nil && strings.TrimSpace(asString(got)) == strings.TrimSpace(asString(want)) {
			matched++
		}
	}
	return float64(matched) / float64(len(gtDS))
}

// nestedOrEmpty walks nested maps. A missing hop yields the empty string
// so exact comparison treats two absences as a match; an explicit null
// leaf stays nil.
func nestedOrEmpty(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		v, present := mm[k]
		if !present {
			return ""
		}
		cur = v
	}
	return cur
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// PrintSummary renders the per-tier score tables and the grand total.
func PrintSummary(w io.Writer, results []*ScoreResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results to summarize.")
		return
	}

	var standard, bonus []*ScoreResult
	for _, r := range results {
		switch r.Tier {
		case TierStandard:
			standard = append(standard, r)
		case TierBonus:
			bonus = append(bonus, r)
		}
	}

	rule := strings.Repeat("=", 76)

	avg := 0.0
	if len(standard) > 0 {
		fmt.Fprintln(w, "\n"+rule)
		fmt.Fprintln(w, "  STANDARD LEVELS (1-12)   each 0–1, averaged → 1.0 pt max")
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "  %-40s %7s %8s %7s\n", "Sample", "Raw", "Penalty", "Final")
		fmt.Fprintln(w, "  "+strings.Repeat("-", 72))

		total := 0.0
		for _, r := range standard {
			name := r.Sample
			if len(name) > 39 {
				name = name[:39]
			}
			fmt.Fprintf(w, "  %-40s %7.4f %8.4f %7.4f\n", name, r.WeightedScore, r.HallucinationPenalty, r.FinalScore)
			total += r.FinalScore
		}
		avg = total / float64(len(standard))

		fmt.Fprintln(w, "  "+strings.Repeat("-", 72))
		fmt.Fprintf(w, "  %-40s %7s %8s %7.4f\n", fmt.Sprintf("MAIN SCORE  (avg of %d levels)", len(standard)), "", "", avg)
		fmt.Fprintf(w, "  %-40s %7s %8s %7s\n", "Max possible", "", "", "1.0000")
		fmt.Fprintln(w, rule)
	}

	bonusScore := 0.0
	if len(bonus) > 0 {
		fmt.Fprintln(w, "\n"+rule)
		fmt.Fprintln(w, "  BONUS LEVEL (13)   granular rubric → 1.0 pt max")
		fmt.Fprintln(w, rule)
		for _, r := range bonus {
			fmt.Fprintf(w, "  Sample: %s\n", r.Sample)
			fmt.Fprintf(w, "  %-32s %7s\n", "Field", "Score")
			fmt.Fprintln(w, "  "+strings.Repeat("-", 42))
			for _, field := range bonusFieldOrder {
				val, ok := r.FieldScores[field]
				if !ok {
					continue
				}
				fmt.Fprintf(w, "  %-32s %7.4f  (x%.2f)\n", field, val, BonusWeights[field])
			}
			fmt.Fprintln(w, "  "+strings.Repeat("-", 42))
			fmt.Fprintf(w, "  %-32s %7.4f\n", "Weighted score", r.WeightedScore)
			fmt.Fprintf(w, "  %-32s %7.4f\n", "Hallucination penalty", r.HallucinationPenalty)
			fmt.Fprintf(w, "  %-32s %7.4f\n", "BONUS SCORE", r.FinalScore)
			fmt.Fprintf(w, "  %-32s %7s\n", "Max possible", "1.0000")
			bonusScore = r.FinalScore
		}
		fmt.Fprintln(w, rule)
	}

	total := avg + bonusScore
	maxTotal := 0.0
	if len(standard) > 0 {
		maxTotal += 1.0
	}
	if len(bonus) > 0 {
		maxTotal += 1.0
	}

	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, "  GRAND TOTAL")
	fmt.Fprintln(w, rule)
	if len(standard) > 0 {
		fmt.Fprintf(w, "    Main score  (levels 1-12):  %7.4f / 1.0\n", avg)
	}
	if len(bonus) > 0 {
		fmt.Fprintf(w, "    Bonus score (level 13):     %7.4f / 1.0\n", bonusScore)
	}
	fmt.Fprintln(w, "    ─────────────────────────────────────")
	fmt.Fprintf(w, "    TOTAL:                      %7.4f / %.1f\n", total, maxTotal)
	fmt.Fprintln(w, rule+"\n")
}
