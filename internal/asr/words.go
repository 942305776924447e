package asr

import "strings"

// wordsFromTokens merges Whisper subword tokens into words and gives them
// uniformly distributed timestamps within [startTime, endTime].
// Whisper doesn't return token timestamps, so each token gets an equal share
// of the span and a word covers the shares of its tokens.
func wordsFromTokens(tokens []string, startTime, endTime float64) []Word {
	type pending struct {
		text  strings.Builder
		first int
		last  int
	}

	var groups []*pending
	index := 0
	for _, t := range tokens {
		if strings.TrimSpace(t) == "" || isSpecialToken(t) {
			continue
		}

		startsWord := strings.HasPrefix(t, " ") || len(groups) == 0
		if startsWord {
			groups = append(groups, &pending{first: index})
		}
		g := groups[len(groups)-1]
		g.text.WriteString(t)
		g.last = index
		index++
	}

	if index == 0 {
		return nil
	}

	tokenDuration := (endTime - startTime) / float64(index)
	words := make([]Word, 0, len(groups))
	for _, g := range groups {
		text := strings.TrimSpace(g.text.String())
		if text == "" {
			continue
		}
		words = append(words, Word{
			Text:  text,
			Start: startTime + float64(g.first)*tokenDuration,
			End:   startTime + float64(g.last+1)*tokenDuration,
		})
	}
	return words
}

// isSpecialToken matches control tokens such as <|en|> or <|endoftext|>
func isSpecialToken(t string) bool {
	t = strings.TrimSpace(t)
	return strings.HasPrefix(t, "<|") && strings.HasSuffix(t, "|>")
}

// normalizeLanguage strips the <|..|> wrapper some engines report
func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	lang = strings.TrimPrefix(lang, "<|")
	lang = strings.TrimSuffix(lang, "|>")
	return lang
}
