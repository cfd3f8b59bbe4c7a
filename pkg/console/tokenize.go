package console

// Tokenize splits line on runs of spaces and tabs, appending each token to
// argv[:0] as a sub-slice of line. At most cap(argv) tokens are produced;
// the remaining input is dropped. Quotes and backslashes are ordinary
// bytes.
func Tokenize(line []byte, argv [][]byte) [][]byte {
	argv = argv[:0]
	max := cap(argv)
	if max == 0 {
		return argv
	}
	start := -1
	for i, b := range line {
		if b == ' ' || b == '\t' {
			if start >= 0 {
				argv = append(argv, line[start:i])
				start = -1
				if len(argv) == max {
					return argv
				}
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 && len(argv) < max {
		argv = append(argv, line[start:])
	}
	return argv
}
