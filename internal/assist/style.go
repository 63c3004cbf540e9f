package assist

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf16"

	"github.com/matheus3301/replykit/internal/store"
)

const (
	styleSampleSize = 20

	analysisNotEnoughData = "Not enough data"
	analysisDefault       = "Style analyzed"
	analysisFallback      = "Basic analysis completed"
)

// StyleResult describes how a counterparty writes.
type StyleResult struct {
	Formality        store.Formality `json:"formality_level"`
	AvgMessageLength int             `json:"avg_message_length"`
	EmojiFrequency   float64         `json:"emoji_frequency"`
	Analysis         string          `json:"analysis"`
}

var emojiRanges = [][2]rune{
	{0x1F600, 0x1F64F},
	{0x1F300, 0x1F5FF},
	{0x1F680, 0x1F6FF},
	{0x1F1E0, 0x1F1FF},
	{0x2600, 0x26FF},
	{0x2700, 0x27BF},
}

func isEmoji(r rune) bool {
	for _, rg := range emojiRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

func countEmoji(s string) int {
	n := 0
	for _, r := range s {
		if isEmoji(r) {
			n++
		}
	}
	return n
}

// Metrics returns the mean length in UTF-16 code units, rounded, and the
// mean number of emoji per message, rounded to two decimals. An emoji
// outside the Basic Multilingual Plane counts as two units of length.
func Metrics(texts []string) (avgLength int, emojiFrequency float64) {
	if len(texts) == 0 {
		return 0, 0
	}
	var chars, emoji int
	for _, t := range texts {
		chars += utf16Len(t)
		emoji += countEmoji(t)
	}
	n := float64(len(texts))
	return int(math.Round(float64(chars) / n)), math.Round(float64(emoji)/n*100) / 100
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func styleSample(texts []string) string {
	if len(texts) > styleSampleSize {
		texts = texts[len(texts)-styleSampleSize:]
	}
	return strings.Join(texts, "\n")
}

type styleReply struct {
	Formality string `json:"formality"`
	Analysis  string `json:"analysis"`
}

func parseStyleReply(raw string) (store.Formality, string, error) {
	var r styleReply
	if err := json.Unmarshal([]byte(stripFence(raw)), &r); err != nil {
		return "", "", err
	}
	f, err := store.ParseFormality(strings.ToLower(strings.TrimSpace(r.Formality)))
	if err != nil || f == "" {
		f = store.Neutral
	}
	analysis := strings.TrimSpace(r.Analysis)
	if analysis == "" {
		analysis = analysisDefault
	}
	return f, analysis, nil
}
