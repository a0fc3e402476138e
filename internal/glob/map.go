package glob

// MapGlobToGlob implements the glob-to-glob mapping operation: given
// an ordered list of from-globs, a single to-glob, and a pool of source
// strings, produce the instantiated destination for every source that
// matches one of the from-globs. srcs itself is not modified: the
// second return value is a copy of the pool with every successfully
// mapped source removed.
func MapGlobToGlob(fromGlobs []string, toGlob string, srcs []string, opts Options) ([]string, []string, error) {
	to, err := Parse(toGlob, opts)
	if err != nil {
		return nil, srcs, err
	}

	pool := append([]string(nil), srcs...)
	var results []string

	for gi, fromRaw := range fromGlobs {
		from, err := Parse(fromRaw, opts)
		if err != nil {
			return results, pool, err
		}

		isLast := gi == len(fromGlobs)-1
		var remaining []string
		for _, s := range pool {
			caps, ok := MatchCapture(from, s)
			if !ok {
				remaining = append(remaining, s)
				continue
			}
			dst, err := Instantiate(to, caps)
			if err != nil {
				if isLast {
					return results, pool, err
				}
				remaining = append(remaining, s)
				continue
			}
			results = append(results, dst)
		}
		pool = remaining
	}

	return results, pool, nil
}
