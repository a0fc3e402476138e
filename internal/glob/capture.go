package glob

import "strings"

// MatchCapture matches name against p in full, producing an ordered
// Capture list: one entry per wildcard atom encountered, in
// left-to-right, segment-by-segment order, with `**` contributing a
// single path capture per occurrence.
func MatchCapture(p Pattern, name string) ([]Capture, bool) {
	absolute := strings.HasPrefix(name, "/")
	if absolute != p.Absolute {
		return nil, false
	}
	trimmed := name
	if absolute {
		trimmed = name[1:]
	}
	var srcSegs []string
	if trimmed != "" {
		srcSegs = strings.Split(trimmed, "/")
	}

	m := &matcher{pat: p.Segments, src: srcSegs, memo: map[[2]int]bool{}}
	var caps []Capture
	if m.match(0, 0, &caps) {
		return caps, true
	}
	return nil, false
}

type matcher struct {
	pat  []Segment
	src  []string
	memo map[[2]int]bool // failed (pattern_index, source_index) states only
}

func (m *matcher) match(pi, si int, caps *[]Capture) bool {
	if pi == len(m.pat) {
		return si == len(m.src)
	}
	key := [2]int{pi, si}
	if failed := m.memo[key]; failed {
		return false
	}

	seg := m.pat[pi]
	if seg.IsDoubleStarOnly() {
		// Try increasing consumed-segment counts, shortest first, so a
		// `**` prefers consuming as little as possible.
		for take := 0; si+take <= len(m.src); take++ {
			snapshot := append([]Capture(nil), *caps...)
			*caps = append(*caps, Capture{Kind: CapturePath, Value: strings.Join(m.src[si:si+take], "/")})
			if m.match(pi+1, si+take, caps) {
				return true
			}
			*caps = snapshot
		}
		m.memo[key] = true
		return false
	}

	if si >= len(m.src) {
		m.memo[key] = true
		return false
	}

	segCaps, ok := matchSegmentCaptures(seg.Atoms, m.src[si])
	if !ok {
		m.memo[key] = true
		return false
	}

	snapshot := append([]Capture(nil), *caps...)
	*caps = append(*caps, segCaps...)
	if m.match(pi+1, si+1, caps) {
		return true
	}
	*caps = snapshot
	m.memo[key] = true
	return false
}

// matchSegmentCaptures is the single-segment DP matcher, extended
// to keep a first-reached-wins predecessor for deterministic traceback
// and to emit one Capture per Star/QMark/CharClass atom.
func matchSegmentCaptures(atoms []Atom, s string) ([]Capture, bool) {
	n := len(s)
	a := len(atoms)

	dp := make([][]bool, a+1)
	pred := make([][]int, a+1)
	for i := range dp {
		dp[i] = make([]bool, n+1)
		pred[i] = make([]int, n+1)
		for j := range pred[i] {
			pred[i][j] = -1
		}
	}
	dp[0][0] = true

	for i := 0; i < a; i++ {
		atom := atoms[i]
		for j := 0; j <= n; j++ {
			if !dp[i][j] {
				continue
			}
			switch atom.Kind {
			case Literal:
				l := len(atom.Literal)
				if j+l <= n && s[j:j+l] == atom.Literal {
					if !dp[i+1][j+l] {
						dp[i+1][j+l] = true
						pred[i+1][j+l] = j
					}
				}
			case QMark:
				if j < n && !dp[i+1][j+1] {
					dp[i+1][j+1] = true
					pred[i+1][j+1] = j
				}
			case CharClass:
				if j < n && atom.Class.Matches(s[j]) && !dp[i+1][j+1] {
					dp[i+1][j+1] = true
					pred[i+1][j+1] = j
				}
			case Star:
				for k := j; k <= n; k++ {
					if !dp[i+1][k] {
						dp[i+1][k] = true
						pred[i+1][k] = j
					}
				}
			}
		}
	}

	if !dp[a][n] {
		return nil, false
	}

	perAtom := make([]Capture, a)
	j := n
	for i := a; i > 0; i-- {
		j0 := pred[i][j]
		atom := atoms[i-1]
		switch atom.Kind {
		case Star:
			perAtom[i-1] = Capture{Kind: CaptureSegment, Value: s[j0:j]}
		case QMark, CharClass:
			perAtom[i-1] = Capture{Kind: CaptureChar, Value: s[j0:j]}
		}
		j = j0
	}

	var out []Capture
	for i, atom := range atoms {
		if atom.Kind == Star || atom.Kind == QMark || atom.Kind == CharClass {
			out = append(out, perAtom[i])
		}
	}
	return out, true
}
