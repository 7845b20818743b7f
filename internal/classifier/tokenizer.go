package classifier

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxWordRunes = 100

// WordPiece is a BERT-compatible tokenizer built from vocab.txt.
type WordPiece struct {
	vocab        map[string]int64
	lowerCase    bool
	continuation string
	clsID        int64
	sepID        int64
	padID        int64
	unkID        int64
}

// LoadWordPiece reads one token per line; the line number is the token id.
func LoadWordPiece(path string, lowerCase bool) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(token) == "" {
			idx++
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab %s is empty", path)
	}
	return newWordPiece(vocab, lowerCase), nil
}

func newWordPiece(vocab map[string]int64, lowerCase bool) *WordPiece {
	return &WordPiece{
		vocab:        vocab,
		lowerCase:    lowerCase,
		continuation: "##",
		clsID:        vocab["[CLS]"],
		sepID:        vocab["[SEP]"],
		padID:        vocab["[PAD]"],
		unkID:        vocab["[UNK]"],
	}
}

// readLowerCase reports tokenizer_config.json's do_lower_case, or fallback
// when the file or field is absent.
func readLowerCase(path string, fallback bool) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	var cfg struct {
		DoLowerCase *bool `json:"do_lower_case"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil || cfg.DoLowerCase == nil {
		return fallback
	}
	return *cfg.DoLowerCase
}

// Encode returns token ids and the attention mask, both of length seqLen.
// Sequences are [CLS] tokens... [SEP], truncated on the right.
func (t *WordPiece) Encode(text string, seqLen int) ([]int64, []int64) {
	if seqLen <= 0 {
		return nil, nil
	}

	ids := make([]int64, 0, seqLen)
	ids = append(ids, t.clsID)
	limit := seqLen - 1
	if limit < 1 {
		limit = 1
	}

outer:
	for _, w := range t.basicTokens(text) {
		for _, id := range t.wordPiece(w) {
			if len(ids) >= limit {
				break outer
			}
			ids = append(ids, id)
		}
	}
	if len(ids) < seqLen {
		ids = append(ids, t.sepID)
	}

	attn := make([]int64, seqLen)
	for i := range ids {
		attn[i] = 1
	}
	for len(ids) < seqLen {
		ids = append(ids, t.padID)
	}
	return ids, attn
}

// basicTokens splits on whitespace and isolates punctuation, the way BERT's
// basic tokenizer does before WordPiece.
func (t *WordPiece) basicTokens(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			out = append(out, string(r))
		default:
			if t.lowerCase {
				r = unicode.ToLower(r)
			}
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// wordPiece greedily matches the longest vocab prefix, on rune boundaries.
func (t *WordPiece) wordPiece(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{id}
	}
	if utf8.RuneCountInString(word) > maxWordRunes {
		return []int64{t.unkID}
	}

	var pieces []int64
	start := 0
	for start < len(word) {
		end := len(word)
		matched := false
		for end > start {
			sub := word[start:end]
			if start > 0 {
				sub = t.continuation + sub
			}
			if id, ok := t.vocab[sub]; ok {
				pieces = append(pieces, id)
				start = end
				matched = true
				break
			}
			_, size := utf8.DecodeLastRuneInString(word[start:end])
			end -= size
		}
		if !matched {
			return []int64{t.unkID}
		}
	}
	return pieces
}
