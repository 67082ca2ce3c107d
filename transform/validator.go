package transform

import (
	"time"

	"github.com/storyreel/backend/models"
)

// Severity classifies a consistency violation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Violation weights. Stable documented constants so report scores are
// deterministic across runs.
const (
	WeightCritical = 25
	WeightWarning  = 10
	WeightInfo     = 2
)

// metric buckets; each violation counts against exactly one sub-score.
type metricKind int

const (
	metricConsistency metricKind = iota
	metricCompleteness
	metricAccuracy
	metricTimeliness
)

// staleThreshold is how far a secondary document may lag the primary
// record before it counts as a timeliness violation.
const staleThreshold = 5 * time.Minute

// Violation is one detected divergence between primary and secondary state.
type Violation struct {
	Field          string      `json:"field"`
	Issue          string      `json:"issue"`
	Severity       Severity    `json:"severity"`
	PrimaryValue   interface{} `json:"primaryValue,omitempty"`
	SecondaryValue interface{} `json:"secondaryValue,omitempty"`

	metric metricKind
}

// QualityMetrics are the four sub-scores of a report, each 0-100 and
// computed from a disjoint subset of violations.
type QualityMetrics struct {
	Consistency  int `json:"consistency"`
	Completeness int `json:"completeness"`
	Accuracy     int `json:"accuracy"`
	Timeliness   int `json:"timeliness"`
}

// DataQualityReport scores the divergence between a primary record and its
// secondary documents. Derived on demand, never persisted.
type DataQualityReport struct {
	IsConsistent bool           `json:"isConsistent"`
	Score        int            `json:"score"`
	Violations   []Violation    `json:"violations"`
	Metrics      QualityMetrics `json:"metrics"`
	Timestamp    time.Time      `json:"timestamp"`
}

// statusMap is the fixed lookup from a primary stage status to the status
// the matching secondary document must carry.
var statusMap = map[string]string{
	string(models.StageStatusPending):    string(models.StageStatusPending),
	string(models.StageStatusCompleted):  string(models.StageStatusCompleted),
	string(models.VideoStatusQueued):     string(models.VideoStatusQueued),
	string(models.VideoStatusProcessing): string(models.VideoStatusProcessing),
	string(models.VideoStatusFailed):     string(models.VideoStatusFailed),
}

func weight(s Severity) int {
	switch s {
	case SeverityCritical:
		return WeightCritical
	case SeverityWarning:
		return WeightWarning
	default:
		return WeightInfo
	}
}

// ValidateConsistency compares the project aggregate against the documents
// read back from the secondary store and scores the divergence. Pure
// function of its inputs and the clock argument; no I/O.
func (t *Transformer) ValidateConsistency(p *models.Project, bag SecondaryBag, now time.Time) *DataQualityReport {
	var violations []Violation

	for _, tag := range p.Tags {
		violations = append(violations, t.checkEntity(p, bag, tag)...)
	}

	score := 100
	criticals := 0
	for _, v := range violations {
		score -= weight(v.Severity)
		if v.Severity == SeverityCritical {
			criticals++
		}
	}
	if score < 0 {
		score = 0
	}

	return &DataQualityReport{
		IsConsistent: criticals == 0,
		Score:        score,
		Violations:   violations,
		Metrics:      subScores(violations),
		Timestamp:    now,
	}
}

// checkEntity runs the rule chain for one tagged entity type: presence,
// identity fields, status mapping, type-specific fields, staleness.
func (t *Transformer) checkEntity(p *models.Project, bag SecondaryBag, tag string) []Violation {
	type docFields struct {
		title     string
		userID    string
		status    string
		updatedAt time.Time
	}

	var present bool
	var got docFields
	var extra []Violation

	switch tag {
	case models.EntityTagStory:
		if bag.Story != nil {
			present = true
			got = docFields{bag.Story.Title, bag.Story.UserID, bag.Story.Status, bag.Story.UpdatedAt}
			if want := p.MetaString(MetaStoryText, ""); bag.Story.Content != want {
				extra = append(extra, Violation{
					Field: "story.content", Issue: "story text differs between stores",
					Severity: SeverityWarning, PrimaryValue: want, SecondaryValue: bag.Story.Content,
					metric: metricAccuracy,
				})
			}
		}
	case models.EntityTagScenario:
		if bag.Scenario != nil {
			present = true
			got = docFields{bag.Scenario.Title, bag.Scenario.UserID, bag.Scenario.Status, bag.Scenario.UpdatedAt}
		}
	case models.EntityTagPrompt:
		if bag.Prompt != nil {
			present = true
			got = docFields{bag.Prompt.Title, bag.Prompt.UserID, bag.Prompt.Status, bag.Prompt.UpdatedAt}
			if want := p.MetaString(MetaFinalPrompt, ""); bag.Prompt.FinalPrompt != want {
				extra = append(extra, Violation{
					Field: "prompt.finalPrompt", Issue: "final prompt text differs between stores",
					Severity: SeverityWarning, PrimaryValue: want, SecondaryValue: bag.Prompt.FinalPrompt,
					metric: metricAccuracy,
				})
			}
		}
	case models.EntityTagVideo:
		if bag.Video != nil {
			present = true
			got = docFields{bag.Video.Title, bag.Video.UserID, bag.Video.Status, bag.Video.UpdatedAt}
			if want := videoURL(p); bag.Video.VideoURL != want {
				extra = append(extra, Violation{
					Field: "video.videoUrl", Issue: "video URL differs between stores",
					Severity: SeverityCritical, PrimaryValue: want, SecondaryValue: bag.Video.VideoURL,
					metric: metricAccuracy,
				})
			}
		}
	default:
		return nil
	}

	if !present {
		return []Violation{{
			Field: tag, Issue: "secondary document missing for tagged entity type",
			Severity: SeverityCritical, PrimaryValue: tag,
			metric: metricCompleteness,
		}}
	}

	var violations []Violation

	if got.userID != p.UserID {
		violations = append(violations, Violation{
			Field: tag + ".userId", Issue: "owning user differs between stores",
			Severity: SeverityCritical, PrimaryValue: p.UserID, SecondaryValue: got.userID,
			metric: metricConsistency,
		})
	}
	if got.title != p.Title {
		violations = append(violations, Violation{
			Field: tag + ".title", Issue: "title differs between stores",
			Severity: SeverityWarning, PrimaryValue: p.Title, SecondaryValue: got.title,
			metric: metricConsistency,
		})
	}

	if want := t.expectedStatus(p, tag); want != "" {
		if mapped, ok := statusMap[want]; ok && got.status != mapped {
			violations = append(violations, Violation{
				Field: tag + ".status", Issue: "status does not match primary via status map",
				Severity: SeverityWarning, PrimaryValue: want, SecondaryValue: got.status,
				metric: metricConsistency,
			})
		}
	}

	if !got.updatedAt.IsZero() && p.UpdatedAt.Sub(got.updatedAt) > staleThreshold {
		violations = append(violations, Violation{
			Field: tag + ".updatedAt", Issue: "secondary document is stale",
			Severity: SeverityInfo, PrimaryValue: p.UpdatedAt, SecondaryValue: got.updatedAt,
			metric: metricTimeliness,
		})
	}

	return append(violations, extra...)
}

// expectedStatus returns the primary-side status for a stage tag.
func (t *Transformer) expectedStatus(p *models.Project, tag string) string {
	switch tag {
	case models.EntityTagStory:
		return stageStatus(p.Pipeline.Story.Completed)
	case models.EntityTagScenario:
		return stageStatus(p.Pipeline.Scenario.Completed)
	case models.EntityTagPrompt:
		return stageStatus(p.Pipeline.Prompt.Completed)
	case models.EntityTagVideo:
		if p.Pipeline.Video.Completed {
			return string(models.VideoStatusCompleted)
		}
		return p.MetaString(MetaVideoStatus, string(models.VideoStatusQueued))
	}
	return ""
}

// subScores computes the four metric sub-scores from disjoint violation
// subsets, each floored at 0.
func subScores(violations []Violation) QualityMetrics {
	scores := map[metricKind]int{
		metricConsistency:  100,
		metricCompleteness: 100,
		metricAccuracy:     100,
		metricTimeliness:   100,
	}
	for _, v := range violations {
		scores[v.metric] -= weight(v.Severity)
	}
	for k, s := range scores {
		if s < 0 {
			scores[k] = 0
		}
	}
	return QualityMetrics{
		Consistency:  scores[metricConsistency],
		Completeness: scores[metricCompleteness],
		Accuracy:     scores[metricAccuracy],
		Timeliness:   scores[metricTimeliness],
	}
}
