package chunker

import (
	"regexp"
	"strings"
)

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// ChunkText splits text into ordered chunks of at most targetChars
// characters, preferring paragraph boundaries, then sentence boundaries. A
// single sentence longer than targetChars is hard-split into fixed-size
// slices; that is the only place raw truncation occurs. Identical input and
// budget always produce identical output.
//
// A non-positive targetChars returns the whole text as one chunk.
func ChunkText(text string, targetChars int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if targetChars <= 0 {
		return []string{trimmed}
	}

	var chunks []string
	for _, para := range splitParagraphs(trimmed) {
		if len(para) <= targetChars {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, packSentences(splitSentences(para), targetChars)...)
	}
	return chunks
}

func splitParagraphs(text string) []string {
	var paras []string
	for _, p := range blankLine.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// splitSentences uses a lightweight heuristic: a sentence ends at '.', '!'
// or '?' immediately followed by a space or end of text.
func splitSentences(s string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' {
				if sent := strings.TrimSpace(s[start : i+1]); sent != "" {
					sentences = append(sentences, sent)
				}
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// packSentences greedily packs sentences into chunks of at most targetChars.
// A sentence that would overflow a non-empty buffer flushes the buffer
// first; a sentence that alone exceeds the budget is hard-split.
func packSentences(sentences []string, targetChars int) []string {
	var chunks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
	}

	for _, sent := range sentences {
		if len(sent) > targetChars {
			flush()
			chunks = append(chunks, hardSplit(sent, targetChars)...)
			continue
		}
		if buf.Len() > 0 && buf.Len()+1+len(sent) > targetChars {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(sent)
	}
	flush()
	return chunks
}

func hardSplit(s string, size int) []string {
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
