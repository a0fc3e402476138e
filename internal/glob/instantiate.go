package glob

import "strings"

// Instantiate walks dst consuming captures in order:
// `**` consumes one path capture, `*` one segment capture, `?`/char
// classes one single-character capture, and literals emit themselves.
// It is an error for the capture list to run out before dst is fully
// built, for the next capture to be of a different kind than the
// wildcard consuming it, or for captures to remain once dst is built.
func Instantiate(dst Pattern, caps []Capture) (string, error) {
	var b strings.Builder
	if dst.Absolute {
		b.WriteByte('/')
	}

	ci := 0
	next := func(kind CaptureKind) (Capture, error) {
		if ci >= len(caps) {
			return Capture{}, &MapError{Code: MapErrInstantiate, Msg: "capture list exhausted before destination was fully built"}
		}
		c := caps[ci]
		if c.Kind != kind {
			return Capture{}, &MapError{Code: MapErrInstantiate, Msg: "capture kind does not fit the destination wildcard"}
		}
		ci++
		return c, nil
	}

	for si, seg := range dst.Segments {
		if si > 0 {
			b.WriteByte('/')
		}
		if seg.IsDoubleStarOnly() {
			c, err := next(CapturePath)
			if err != nil {
				return "", err
			}
			b.WriteString(c.Value)
			continue
		}
		for _, atom := range seg.Atoms {
			switch atom.Kind {
			case Literal:
				b.WriteString(atom.Literal)
			case Star:
				c, err := next(CaptureSegment)
				if err != nil {
					return "", err
				}
				b.WriteString(c.Value)
			case QMark, CharClass:
				c, err := next(CaptureChar)
				if err != nil {
					return "", err
				}
				if len(c.Value) != 1 {
					return "", &MapError{Code: MapErrInstantiate, Msg: "char capture must be exactly one character"}
				}
				b.WriteString(c.Value)
			}
		}
	}

	if ci != len(caps) {
		return "", &MapError{Code: MapErrInstantiate, Msg: "captures remained after destination was fully built"}
	}

	return b.String(), nil
}
