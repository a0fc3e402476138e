package glob

// Match reports whether name matches the full Pattern p, with '/' as
// the segment separator joining p.Segments against name's own split.
func Match(p Pattern, name string) bool {
	_, ok := MatchCapture(p, name)
	return ok
}

// matchSegment reports whether atoms matches the literal string s in
// full, trying the mandatory fast paths first and falling
// back to the general DP.
func matchSegment(atoms []Atom, s string) bool {
	if ok, fast := fastMatch(atoms, s); fast {
		return ok
	}
	return dpMatch(atoms, s)
}

// fastMatch recognises the cheap, common shapes: a single
// literal, a single star, `lit*`, `*lit`, `lit*lit`, and a pure run of
// QMarks. Returns (result, true) if one of these shapes applied, or
// (false, false) if the general DP must be used.
func fastMatch(atoms []Atom, s string) (bool, bool) {
	switch len(atoms) {
	case 1:
		switch atoms[0].Kind {
		case Literal:
			return atoms[0].Literal == s, true
		case Star:
			return true, true
		case QMark:
			return len(s) == 1, true
		}
	case 2:
		if atoms[0].Kind == Literal && atoms[1].Kind == Star {
			lit := atoms[0].Literal
			return len(s) >= len(lit) && s[:len(lit)] == lit, true
		}
		if atoms[0].Kind == Star && atoms[1].Kind == Literal {
			lit := atoms[1].Literal
			return len(s) >= len(lit) && s[len(s)-len(lit):] == lit, true
		}
	case 3:
		if atoms[0].Kind == Literal && atoms[1].Kind == Star && atoms[2].Kind == Literal {
			pre, suf := atoms[0].Literal, atoms[2].Literal
			if len(s) < len(pre)+len(suf) {
				return false, true
			}
			return s[:len(pre)] == pre && s[len(s)-len(suf):] == suf, true
		}
	}

	allQMark := len(atoms) > 0
	for _, a := range atoms {
		if a.Kind != QMark {
			allQMark = false
			break
		}
	}
	if allQMark {
		return len(s) == len(atoms), true
	}

	return false, false
}

// dpMatch is the general segment matcher:
// dp[i][j] = atoms[:i] can match s[:j].
func dpMatch(atoms []Atom, s string) bool {
	n := len(s)
	a := len(atoms)
	dp := make([][]bool, a+1)
	for i := range dp {
		dp[i] = make([]bool, n+1)
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
					dp[i+1][j+l] = true
				}
			case QMark:
				if j < n {
					dp[i+1][j+1] = true
				}
			case CharClass:
				if j < n && atom.Class.Matches(s[j]) {
					dp[i+1][j+1] = true
				}
			case Star:
				for k := j; k <= n; k++ {
					dp[i+1][k] = true
				}
			}
		}
	}

	return dp[a][n]
}
