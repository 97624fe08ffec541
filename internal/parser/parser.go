package parser

// Tokenize splits one raw chunk into text and control tokens. Matches are
// found left to right without overlap; the text between them is emitted as
// Text tokens, never empty. Concatenating the contents of the result
// reproduces chunk exactly.
//
// Tokenize keeps no state between calls: a sequence split across two chunks
// comes out as two text fragments.
func Tokenize(chunk []byte) Batch {
	if len(chunk) == 0 {
		return nil
	}

	matches := csiToken.FindAllIndex(chunk, -1)
	batch := make(Batch, 0, 2*len(matches)+1)

	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > last {
			batch = append(batch, Text(string(chunk[last:start])))
		}
		batch = append(batch, Control(string(chunk[start:end])))
		last = end
	}
	if last < len(chunk) {
		batch = append(batch, Text(string(chunk[last:])))
	}
	return batch
}

// TokenizeString is Tokenize for string input.
func TokenizeString(s string) Batch {
	return Tokenize([]byte(s))
}
