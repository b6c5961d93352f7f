package vcsfile

import "bytes"

// ForEachLine calls visit for every line of data, numbered from 1. Lines are
// split on '\n' and delivered without it; a final unterminated fragment is a
// line of its own. It returns false as soon as visit does.
func ForEachLine(data []byte, visit func(lineno int, line string) bool) bool {
	lineno := 0
	for len(data) > 0 {
		lineno++
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			return visit(lineno, string(data))
		}
		if !visit(lineno, string(data[:nl])) {
			return false
		}
		data = data[nl+1:]
	}
	return true
}
