package thermal

// SegmentConfig holds the thresholds used to classify cells as warm.
type SegmentConfig struct {
	// MinHumanTemp and MaxHumanTemp bound the absolute temperature window a
	// cell must fall inside to plausibly be skin or clothing surface.
	MinHumanTemp float64
	MaxHumanTemp float64

	// BaselineMargin is how far above the room baseline a cell must read
	// before it counts as warm. The absolute window alone misclassifies a
	// warm room; the relative margin alone misclassifies any warm object,
	// so both predicates must hold.
	BaselineMargin float64
}

// DefaultSegmentConfig returns the production-default segmentation thresholds.
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		MinHumanTemp:   30.0,
		MaxHumanTemp:   45.0,
		BaselineMargin: 0.5,
	}
}

// Cell is one grid coordinate.
type Cell struct {
	Row int
	Col int
}

// Component is a maximal set of mutually 8-adjacent warm cells.
// Labels are unique within one frame's segmentation only.
type Component struct {
	Label int
	Cells []Cell
}

// Size returns the number of cells in the component.
func (c Component) Size() int { return len(c.Cells) }

// WarmMask classifies every cell of the frame against the baseline and
// returns a same-shaped boolean mask, row-major like Frame.Cells. A cell is
// warm iff it lies within [MinHumanTemp, MaxHumanTemp] AND exceeds the
// baseline by at least BaselineMargin.
func WarmMask(f *Frame, baseline float64, cfg SegmentConfig) []bool {
	mask := make([]bool, len(f.Cells))
	for i, t := range f.Cells {
		mask[i] = t >= cfg.MinHumanTemp && t <= cfg.MaxHumanTemp && t-baseline >= cfg.BaselineMargin
	}
	return mask
}

// LabelComponents groups the warm cells of a mask into 8-connected
// components: a cell is connected to each of its up-to-8 orthogonal and
// diagonal neighbors that are also warm.
//
// Labeling is an iterative flood fill with an explicit stack, so stack depth
// is bounded regardless of grid size. The mask is scanned row-major and new
// labels are assigned in first-seen order starting at 1, which makes the
// output deterministic for a fixed mask. The input mask is not modified.
func LabelComponents(mask []bool, width, height int) []Component {
	if width <= 0 || height <= 0 || len(mask) != width*height {
		return nil
	}

	labels := make([]int, len(mask))
	var components []Component
	stack := make([]int, 0, 64)
	next := 1

	for start := range mask {
		if !mask[start] || labels[start] != 0 {
			continue
		}

		comp := Component{Label: next}
		labels[start] = next
		stack = append(stack[:0], start)

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			row, col := idx/width, idx%width
			comp.Cells = append(comp.Cells, Cell{Row: row, Col: col})

			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					nr, nc := row+dr, col+dc
					if nr < 0 || nr >= height || nc < 0 || nc >= width {
						continue
					}
					n := nr*width + nc
					if mask[n] && labels[n] == 0 {
						labels[n] = next
						stack = append(stack, n)
					}
				}
			}
		}

		components = append(components, comp)
		next++
	}

	return components
}
