package runner

import (
	"strconv"
	"strings"
)

// idTokenizer reads and writes token IDs as space separated numbers
type idTokenizer struct {
	vocab int
}

func (t *idTokenizer) Encode(text string) ([]int, error) {
	var ids []int
	for _, f := range strings.Fields(text) {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *idTokenizer) Decode(ids []int) (string, error) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, " "), nil
}

func (t *idTokenizer) EOSTokenID() int { return 0 }
func (t *idTokenizer) BOSTokenID() int { return 0 }
func (t *idTokenizer) PadTokenID() int { return 0 }
func (t *idTokenizer) VocabSize() int  { return t.vocab }
