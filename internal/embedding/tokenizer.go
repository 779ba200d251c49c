package embedding

import "strings"

// tokenize produces padded BERT-style inputs (input_ids, attention_mask,
// token_type_ids) for the local ONNX model. Token IDs are hash-derived; this
// is a stand-in for a real WordPiece vocabulary and is good enough for the
// bundled MiniLM export, which tolerates unknown-token IDs.
func tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = 101 // [CLS]
	attentionMask[0] = 1

	pos := 1
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		// Vocabulary range of bert-base; reserve the first 1000 special IDs.
		inputIDs[pos] = int64(hashString(word)%28996) + 1000
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = 102 // [SEP]
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}
