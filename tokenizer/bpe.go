package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// GPT-2 pre-tokenization pattern. RE2 has no lookahead, so the trailing
// `\s+(?!\S)` rule is applied by hand in splitWords.
var wordPattern = regexp.MustCompile(`\A(?:'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+)`)

// BPE implements GPT-2 byte-level BPE tokenization in pure Go.
// It is safe for concurrent use.
type BPE struct {
	encoder     map[string]int
	decoder     map[int]string
	bpeRanks    map[string]int
	byteEncoder map[byte]rune
	byteDecoder map[rune]byte

	// added tokens are matched verbatim before pre-tokenization
	added     []string
	specialID map[int]struct{}

	special   SpecialTokens
	vocabSize int

	cacheMu sync.RWMutex
	cache   map[string][]string
}

// LoadBPE loads a byte-level BPE tokenizer from dir. It reads vocab.json and
// merges.txt when present, otherwise the BPE model inside tokenizer.json.
func LoadBPE(dir string, opts ...Option) (*BPE, error) {
	o := NewOptions(opts...)

	t := &BPE{
		encoder:     make(map[string]int),
		decoder:     make(map[int]string),
		bpeRanks:    make(map[string]int),
		byteEncoder: buildByteEncoder(),
		byteDecoder: make(map[rune]byte),
		specialID:   make(map[int]struct{}),
		cache:       make(map[string][]string),
	}
	for b, r := range t.byteEncoder {
		t.byteDecoder[r] = b
	}

	source := "vocab.json"
	if _, err := os.Stat(filepath.Join(dir, source)); err == nil {
		if err := t.loadVocabFiles(dir); err != nil {
			return nil, err
		}
	} else {
		source = "tokenizer.json"
		if err := t.loadTokenizerJSON(dir); err != nil {
			return nil, fmt.Errorf("failed to load tokenizer from %s: %w", dir, err)
		}
	}

	t.special = ResolveSpecialTokens(dir, o.PadToken, t.lookup)
	if t.special.EOS < 0 {
		if id, ok := t.encoder[DefaultPadToken]; ok {
			t.special.EOS, t.special.BOS = id, id
		}
	}
	for _, id := range []int{t.special.EOS, t.special.BOS, t.special.Pad} {
		if id >= 0 {
			t.specialID[id] = struct{}{}
			if tok, ok := t.decoder[id]; ok {
				t.addToken(tok)
			}
		}
	}

	for id := range t.decoder {
		if id+1 > t.vocabSize {
			t.vocabSize = id + 1
		}
	}

	o.Logger.Info().
		Str("source", source).
		Int("vocab", t.vocabSize).
		Int("merges", len(t.bpeRanks)).
		Int("eos", t.special.EOS).
		Int("bos", t.special.BOS).
		Int("pad", t.special.Pad).
		Msg("loaded BPE tokenizer")

	return t, nil
}

// buildByteEncoder creates GPT-2's byte-to-unicode mapping
func buildByteEncoder() map[byte]rune {
	encoder := make(map[byte]rune)

	for b := int('!'); b <= int('~'); b++ {
		encoder[byte(b)] = rune(b)
	}
	for b := int('¡'); b <= int('¬'); b++ {
		encoder[byte(b)] = rune(b)
	}
	for b := int('®'); b <= int('ÿ'); b++ {
		encoder[byte(b)] = rune(b)
	}

	// remaining bytes go to 256+
	n := 0
	for b := 0; b < 256; b++ {
		if _, ok := encoder[byte(b)]; !ok {
			encoder[byte(b)] = rune(256 + n)
			n++
		}
	}

	return encoder
}

func (t *BPE) loadVocabFiles(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, "vocab.json"))
	if err != nil {
		return err
	}

	vocab := make(map[string]int)
	if err := json.Unmarshal(data, &vocab); err != nil {
		return fmt.Errorf("failed to parse vocab: %w", err)
	}
	t.setVocab(vocab)

	if err := t.loadMerges(filepath.Join(dir, "merges.txt")); err != nil {
		return fmt.Errorf("failed to load merges: %w", err)
	}

	// vocab.json checkpoints list added tokens separately
	if data, err := os.ReadFile(filepath.Join(dir, "added_tokens.json")); err == nil {
		added := make(map[string]int)
		if err := json.Unmarshal(data, &added); err != nil {
			return fmt.Errorf("failed to parse added tokens: %w", err)
		}
		for tok, id := range added {
			t.encoder[tok] = id
			t.decoder[id] = tok
			t.addToken(tok)
		}
	}

	return nil
}

// loadMerges loads BPE merge rules
func (t *BPE) loadMerges(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	rank := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#version") {
			continue
		}
		t.bpeRanks[line] = rank
		rank++
	}

	return scanner.Err()
}

func (t *BPE) loadTokenizerJSON(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		return err
	}

	var tokenizerJSON struct {
		Model struct {
			Type   string            `json:"type"`
			Vocab  map[string]int    `json:"vocab"`
			Merges []json.RawMessage `json:"merges"`
		} `json:"model"`
		AddedTokens []struct {
			ID      int    `json:"id"`
			Content string `json:"content"`
			Special bool   `json:"special"`
		} `json:"added_tokens"`
	}

	if err := json.Unmarshal(data, &tokenizerJSON); err != nil {
		return err
	}

	if typ := tokenizerJSON.Model.Type; typ != "" && typ != "BPE" {
		return fmt.Errorf("unsupported tokenizer model %q", typ)
	}

	t.setVocab(tokenizerJSON.Model.Vocab)

	// merges are "a b" strings in older files and ["a", "b"] pairs in newer ones
	for rank, raw := range tokenizerJSON.Model.Merges {
		var line string
		if err := json.Unmarshal(raw, &line); err != nil {
			var pair []string
			if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
				return fmt.Errorf("invalid merge rule at %d: %s", rank, raw)
			}
			line = pair[0] + " " + pair[1]
		}
		t.bpeRanks[line] = rank
	}

	for _, added := range tokenizerJSON.AddedTokens {
		t.encoder[added.Content] = added.ID
		t.decoder[added.ID] = added.Content
		t.addToken(added.Content)
		if added.Special {
			t.specialID[added.ID] = struct{}{}
		}
	}

	return nil
}

func (t *BPE) setVocab(vocab map[string]int) {
	for token, id := range vocab {
		t.encoder[token] = id
		t.decoder[id] = token
	}
}

func (t *BPE) addToken(tok string) {
	for _, a := range t.added {
		if a == tok {
			return
		}
	}
	t.added = append(t.added, tok)
	// longest first so overlapping tokens match greedily
	sort.SliceStable(t.added, func(i, j int) bool {
		return len(t.added[i]) > len(t.added[j])
	})
}

func (t *BPE) lookup(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	id, ok := t.encoder[token]
	return id, ok
}

// Encode converts text to token IDs. Added tokens written out in the text
// (e.g. "<|endoftext|>") map to their own IDs. Invalid UTF-8 is replaced
// with U+FFFD.
func (t *BPE) Encode(text string) ([]int, error) {
	text = strings.ToValidUTF8(text, "\uFFFD")

	var tokenIDs []int
	for len(text) > 0 {
		pos, tok := t.nextAdded(text)
		tokenIDs = t.encodeOrdinary(tokenIDs, text[:pos])
		if tok == "" {
			break
		}
		tokenIDs = append(tokenIDs, t.encoder[tok])
		text = text[pos+len(tok):]
	}

	return tokenIDs, nil
}

// nextAdded finds the earliest added token in text. It returns len(text)
// and "" when there is none.
func (t *BPE) nextAdded(text string) (int, string) {
	best, bestTok := len(text), ""
	for _, tok := range t.added {
		if i := strings.Index(text, tok); i >= 0 && i < best {
			best, bestTok = i, tok
		}
	}
	return best, bestTok
}

func (t *BPE) encodeOrdinary(tokenIDs []int, text string) []int {
	for _, word := range splitWords(text) {
		var bpeToken strings.Builder
		for _, b := range []byte(word) {
			bpeToken.WriteRune(t.byteEncoder[b])
		}

		for _, piece := range t.bpe(bpeToken.String()) {
			if id, ok := t.encoder[piece]; ok {
				tokenIDs = append(tokenIDs, id)
			}
		}
	}
	return tokenIDs
}

// splitWords applies the GPT-2 pre-tokenizer. A whitespace run followed by
// a non-space keeps its last character for the next word.
func splitWords(text string) []string {
	var words []string
	for len(text) > 0 {
		loc := wordPattern.FindStringIndex(text)
		end := 0
		if loc != nil {
			end = loc[1]
		}
		if end == 0 {
			_, size := utf8.DecodeRuneInString(text)
			end = size
		}

		word := text[:end]
		if end < len(text) && isSpace(word) {
			_, last := utf8.DecodeLastRuneInString(word)
			if len(word) > last {
				end -= last
				word = text[:end]
			}
		}

		words = append(words, word)
		text = text[end:]
	}
	return words
}

func isSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return s != ""
}

// bpe applies byte pair encoding to a word
func (t *BPE) bpe(token string) []string {
	t.cacheMu.RLock()
	cached, ok := t.cache[token]
	t.cacheMu.RUnlock()
	if ok {
		return cached
	}

	word := make([]string, 0, len(token))
	for _, r := range token {
		word = append(word, string(r))
	}

	for len(word) > 1 {
		// pair with the lowest rank merges first
		minRank := int(^uint(0) >> 1)
		minIdx := -1
		for i := 0; i < len(word)-1; i++ {
			if rank, ok := t.bpeRanks[word[i]+" "+word[i+1]]; ok && rank < minRank {
				minRank = rank
				minIdx = i
			}
		}

		if minIdx < 0 {
			break
		}

		first, second := word[minIdx], word[minIdx+1]
		newWord := make([]string, 0, len(word))
		for i := 0; i < len(word); {
			if i < len(word)-1 && word[i] == first && word[i+1] == second {
				newWord = append(newWord, first+second)
				i += 2
				continue
			}
			newWord = append(newWord, word[i])
			i++
		}
		word = newWord
	}

	t.cacheMu.Lock()
	t.cache[token] = word
	t.cacheMu.Unlock()

	return word
}

// Decode converts token IDs to text, skipping special tokens.
func (t *BPE) Decode(tokenIDs []int) (string, error) {
	var bytes []byte
	for _, id := range tokenIDs {
		if _, skip := t.specialID[id]; skip {
			continue
		}
		token, ok := t.decoder[id]
		if !ok {
			continue
		}
		for _, r := range token {
			if b, ok := t.byteDecoder[r]; ok {
				bytes = append(bytes, b)
			} else {
				bytes = utf8.AppendRune(bytes, r)
			}
		}
	}

	return strings.ToValidUTF8(string(bytes), "\uFFFD"), nil
}

// EOSTokenID returns the EOS token ID
func (t *BPE) EOSTokenID() int {
	return t.special.EOS
}

// BOSTokenID returns the BOS token ID
func (t *BPE) BOSTokenID() int {
	return t.special.BOS
}

// PadTokenID returns the pad token ID
func (t *BPE) PadTokenID() int {
	return t.special.Pad
}

// VocabSize returns the vocabulary size
func (t *BPE) VocabSize() int {
	return t.vocabSize
}
