// Package reconcile validates image anchors claimed by the document markup
// against significant element index space and decides where images without
// usable anchor go.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"dxt/catalog"
	"dxt/introspect"
	"dxt/issues"
	"dxt/utils/debug"
)

// Result is outcome of reconciliation pass.
type Result struct {
	// Images in catalog order, same length as input.
	Images []*catalog.ImageRecord
	// SignificantCount is size of index space images were reconciled against.
	SignificantCount int
	Strategy         Strategy
	// Unplaced is number of images left without anchor after validation.
	Unplaced int
	// MultiImagePositions lists asset ids sharing the same anchor, in catalog
	// order. All of them are kept.
	MultiImagePositions map[int][]string
}

// Placement returns where image goes: its anchor or SignificantCount (after
// the last element) when it has none. Unknown id is placed at the end too.
func (r *Result) Placement(id string) int {
	for _, img := range r.Images {
		if img.AssetID == id {
			return r.placement(img)
		}
	}
	return r.SignificantCount
}

func (r *Result) placement(img *catalog.ImageRecord) int {
	if img.Anchor == nil {
		return r.SignificantCount
	}
	return *img.Anchor
}

// Placements returns placement of every image.
func (r *Result) Placements() map[string]int {
	res := make(map[string]int, len(r.Images))
	for _, img := range r.Images {
		res[img.AssetID] = r.placement(img)
	}
	return res
}

// Positioned returns number of images having anchor.
func (r *Result) Positioned() int {
	n := 0
	for _, img := range r.Images {
		if img.Anchor != nil {
			n++
		}
	}
	return n
}

// Reconcile validates anchors of images against targets (significant
// elements) and distributes images left without anchor according to
// ChooseStrategy. Images are changed in place and every decision goes to the
// issues report and tracker. valid is set of relationship ids resolving to
// catalogued images, target is considered empty when it has no text and none
// of its references is valid.
func Reconcile(images []*catalog.ImageRecord, targets []introspect.Target, valid map[string]bool, tracker *Tracker, rpt *issues.Report, log *zap.Logger) *Result {
	log = log.Named("reconcile")

	res := &Result{
		Images:              images,
		SignificantCount:    len(targets),
		MultiImagePositions: make(map[int][]string),
	}
	count := res.SignificantCount

	tracker.Record(StageExtraction, snapshot(images))

	nonEmpty := make([]bool, count)
	for i, t := range targets {
		nonEmpty[i] = !isEmpty(t, valid)
	}

	var unplaced []*catalog.ImageRecord
	for _, img := range images {
		before := copyAnchor(img.Anchor)
		reason := validate(img, nonEmpty)
		if reason != "" {
			rpt.Add(issues.CategoryAnchor, img.AssetID, reason)
			tracker.Note(StageValidation, img.AssetID, before, img.Anchor, reason)
			log.Debug("Anchor reclassified",
				zap.String("id", img.AssetID),
				zap.String("was", debug.Anchor(before)),
				zap.String("now", debug.Anchor(img.Anchor)),
				zap.String("reason", reason))
		}
		if img.Anchor == nil {
			unplaced = append(unplaced, img)
		}
	}
	res.Unplaced = len(unplaced)
	tracker.Record(StageValidation, snapshot(images))

	res.Strategy = ChooseStrategy(len(unplaced), count)
	var positions []int
	switch res.Strategy {
	case StrategyEven:
		positions = evenPositions(len(unplaced), count)
	case StrategyCluster:
		positions = clusterPositions(len(unplaced), count)
	}
	for i, pos := range positions {
		img := unplaced[i]
		img.Anchor = &pos
		tracker.Note(StagePositioning, img.AssetID, nil, img.Anchor, res.Strategy.String()+" distribution")
	}
	if res.Strategy == StrategyAppend {
		for _, img := range unplaced {
			tracker.Note(StagePositioning, img.AssetID, nil, nil, "appended after last element")
		}
	}
	tracker.Record(StagePositioning, snapshot(images))

	for _, img := range images {
		if img.Anchor != nil {
			res.MultiImagePositions[*img.Anchor] = append(res.MultiImagePositions[*img.Anchor], img.AssetID)
		}
	}
	for pos, ids := range res.MultiImagePositions {
		if len(ids) < 2 {
			delete(res.MultiImagePositions, pos)
		}
	}

	placements := make(Snapshot, len(images))
	for id, p := range res.Placements() {
		placements[id] = &p
	}
	tracker.Record(StageInsertion, placements)

	log.Debug("Images reconciled",
		zap.Int("images", len(images)),
		zap.Int("significant", count),
		zap.Int("unplaced", res.Unplaced),
		zap.Stringer("strategy", res.Strategy),
		zap.Int("shared positions", len(res.MultiImagePositions)))
	return res
}

// validate applies checks in order: missing, negative, out of range and
// empty target. Returns non empty reason when anchor was changed or found
// unusable.
func validate(img *catalog.ImageRecord, nonEmpty []bool) string {
	if img.Anchor == nil {
		return ""
	}
	a := *img.Anchor
	switch {
	case a < 0:
		img.Anchor = nil
		return fmt.Sprintf("negative anchor %d", a)
	case a >= len(nonEmpty):
		img.Anchor = nil
		return fmt.Sprintf("anchor %d out of range [0, %d)", a, len(nonEmpty))
	case !nonEmpty[a]:
		if n, ok := nearestNonEmpty(nonEmpty, a); ok {
			img.Anchor = &n
			return fmt.Sprintf("anchor %d points to empty element, moved to %d", a, n)
		}
		img.Anchor = nil
		return fmt.Sprintf("anchor %d points to empty element and no non empty element exists", a)
	}
	return ""
}

// nearestNonEmpty finds closest non empty index, ties go to the lower one.
func nearestNonEmpty(nonEmpty []bool, at int) (int, bool) {
	for d := 1; d < len(nonEmpty); d++ {
		if i := at - d; i >= 0 && nonEmpty[i] {
			return i, true
		}
		if i := at + d; i < len(nonEmpty) && nonEmpty[i] {
			return i, true
		}
	}
	return 0, false
}

func isEmpty(t introspect.Target, valid map[string]bool) bool {
	if t.HasText {
		return false
	}
	for _, rid := range t.Refs {
		if valid[rid] {
			return false
		}
	}
	return true
}

func snapshot(images []*catalog.ImageRecord) Snapshot {
	s := make(Snapshot, len(images))
	for _, img := range images {
		s[img.AssetID] = img.Anchor
	}
	return s
}

// String returns debug representation of reconciliation result.
func (r *Result) String() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Reconciliation: images=%d significant=%d unplaced=%d strategy=%s", len(r.Images), r.SignificantCount, r.Unplaced, r.Strategy)
	for _, img := range r.Images {
		tw.Line(1, "%s -> %s (placement %d)", img.AssetID, debug.Anchor(img.Anchor), r.placement(img))
	}
	if len(r.MultiImagePositions) > 0 {
		positions := make([]int, 0, len(r.MultiImagePositions))
		for pos := range r.MultiImagePositions {
			positions = append(positions, pos)
		}
		sort.Ints(positions)
		tw.Line(1, "Shared positions: %d", len(positions))
		for _, pos := range positions {
			tw.Line(2, "[%d] %s", pos, strings.Join(r.MultiImagePositions[pos], ", "))
		}
	}
	return tw.String()
}
