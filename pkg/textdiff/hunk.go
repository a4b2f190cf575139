package textdiff

// Hunk is a contiguous run of edit-script operations plus surrounding context,
// addressed in 1-based line coordinates like a unified-diff @@ header.
// A zero-length side (pure insertion or deletion at that point) is addressed
// by the line before it, which may be 0.
type Hunk struct {
	AStart int
	ALen   int
	BStart int
	BLen   int
	Ops    []Op
}

// Hunks groups an edit script into hunks, keeping at most context equal lines
// on each side of a change and merging changes whose context overlaps. An
// all-equal script produces no hunks.
func Hunks(ops []Op, context int) []Hunk {
	if context < 0 {
		context = 0
	}

	changed := false
	for _, op := range ops {
		if op.Kind != Equal {
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}

	var hunks []Hunk
	var current *Hunk
	aLine, bLine := 0, 0 // lines consumed so far on each side
	equalRun := 0        // equal ops pending since the last change in current

	flush := func() {
		if current == nil {
			return
		}
		// Trim trailing context beyond the limit.
		if equalRun > context {
			drop := equalRun - context
			current.Ops = current.Ops[:len(current.Ops)-drop]
			current.ALen -= drop
			current.BLen -= drop
		}
		hunks = append(hunks, *current)
		current = nil
		equalRun = 0
	}

	for i, op := range ops {
		switch op.Kind {
		case Equal:
			aLine++
			bLine++
			if current != nil {
				current.Ops = append(current.Ops, op)
				current.ALen++
				current.BLen++
				equalRun++
				// A gap wider than 2*context cannot be shared between
				// this hunk's trailing context and the next one's
				// leading context, so the hunk is complete.
				if equalRun > 2*context {
					flush()
				}
			}
		case Delete, Insert:
			if current == nil {
				lead := context
				if lead > aLine {
					lead = aLine
				}
				if lead > bLine {
					lead = bLine
				}
				// Leading context comes from the preceding equal ops.
				current = &Hunk{
					AStart: aLine - lead + 1,
					BStart: bLine - lead + 1,
				}
				for j := i - lead; j < i; j++ {
					current.Ops = append(current.Ops, ops[j])
				}
				current.ALen = lead
				current.BLen = lead
			}
			current.Ops = append(current.Ops, op)
			if op.Kind == Delete {
				aLine++
				current.ALen++
			} else {
				bLine++
				current.BLen++
			}
			equalRun = 0
		}
	}
	flush()

	// Unified-diff convention: a zero-length range is addressed by the
	// preceding line.
	for i := range hunks {
		if hunks[i].ALen == 0 {
			hunks[i].AStart--
		}
		if hunks[i].BLen == 0 {
			hunks[i].BStart--
		}
	}
	return hunks
}
