package vault

import "strings"

// DefaultSeparators is the split-point preference for note chunking:
// heading markers first, then paragraph, line, word and finally a hard
// character cut.
var DefaultSeparators = []string{"#", "##", "###", "####", "\n\n", "\n", " ", ""}

// Chunk is one retrieval unit cut from a Document.
type Chunk struct {
	Ord  int
	Text string
}

// SplitText cuts text into overlapping windows of at most size bytes,
// preferring the earliest separator in DefaultSeparators that occurs in
// the text and recursing with the remaining separators for oversized
// pieces.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = 1500
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	var out []string
	for _, c := range splitRecursive(text, size, overlap, DefaultSeparators) {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// SplitDocument chunks a document's content; every chunk inherits the
// parent metadata by reference to the Document.
func (v *Vault) SplitDocument(doc *Document, size, overlap int) []Chunk {
	pieces := SplitText(doc.Content, size, overlap)
	chunks := make([]Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, Chunk{Ord: i, Text: p})
	}
	return chunks
}

func splitRecursive(text string, size, overlap int, seps []string) []string {
	if len(text) <= size {
		return []string{text}
	}

	sep := ""
	var rest []string
	for i, s := range seps {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}
	if sep == "" {
		return hardSplit(text, size, overlap)
	}

	var pieces []string
	for _, p := range splitKeep(text, sep) {
		if len(p) > size {
			pieces = append(pieces, splitRecursive(p, size, overlap, rest)...)
		} else {
			pieces = append(pieces, p)
		}
	}
	return mergePieces(pieces, size, overlap)
}

// splitKeep splits on sep, keeping the separator attached to the start
// of the following piece so heading markers survive in their chunk.
func splitKeep(text, sep string) []string {
	raw := strings.Split(text, sep)
	parts := make([]string, 0, len(raw))
	for i, r := range raw {
		if i == 0 {
			if r != "" {
				parts = append(parts, r)
			}
			continue
		}
		parts = append(parts, sep+r)
	}
	return parts
}

// mergePieces greedily packs pieces into windows of at most size bytes;
// when a window closes, leading pieces are dropped until at most
// overlap bytes remain and carry into the next window.
func mergePieces(pieces []string, size, overlap int) []string {
	var chunks []string
	var window []string
	total := 0
	for _, p := range pieces {
		if total > 0 && total+len(p) > size {
			chunks = append(chunks, strings.Join(window, ""))
			for total > overlap && len(window) > 0 {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += len(p)
	}
	if total > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}

func hardSplit(text string, size, overlap int) []string {
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var chunks []string
	for i := 0; i < len(text); i += step {
		end := i + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[i:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
