package chunker

import (
	"regexp"
	"strings"
)

// Chapter is one detected chapter, with its position in the original
// text preserved as a rune offset range so callers can recover
// whitespace the trimmed Content drops.
type Chapter struct {
	Index   int
	Title   string
	Content string
	Start   int
	End     int
}

// ChapterSummary is what detect_chapters returns: chapter boundaries
// without the (potentially large) content, used by the HTTP layer to
// decide whether to offer chapter-mode processing.
type ChapterSummary struct {
	HasChapters  bool             `json:"has_chapters"`
	ChapterCount int              `json:"chapter_count"`
	Chapters     []ChapterSummaryEntry `json:"chapters"`
}

// ChapterSummaryEntry is one row of a ChapterSummary.
type ChapterSummaryEntry struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Length int    `json:"length"`
}

// headerPatterns are tried in order against a single line; the first
// match wins. Order matters: more specific bracketed titles must be
// tried before the bare "第N章" pattern so the title capture includes
// the bracket text.
var headerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*【[^】]*】\s*第[0-9一二三四五六七八九十百千零〇]+章.*$`),
	regexp.MustCompile(`^\s*第[0-9一二三四五六七八九十百千零〇]+章.*$`),
	regexp.MustCompile(`^\s*第[0-9一二三四五六七八九十百千零〇]+节.*$`),
	regexp.MustCompile(`(?i)^\s*Chapter\s+[0-9]+.*$`),
	regexp.MustCompile(`(?i)^\s*Ch\.\s*[0-9]+.*$`),
	regexp.MustCompile(`^\s*[0-9]+[.、]\s*.+$`),
	regexp.MustCompile(`^\s*[一二三四五六七八九十百千零〇]+[.、]\s*.+$`),
	regexp.MustCompile(`^\s*[*\-_=]{3,}\s*$`),
	regexp.MustCompile(`^\s*第[0-9一二三四五六七八九十百千零〇]+(卷|部|篇).*$`),
}

var rulerPattern = regexp.MustCompile(`^\s*[*\-_=]{3,}\s*$`)
var digitPunctOnly = regexp.MustCompile(`^[0-9\p{P}\s]+$`)
var metadataKeywords = regexp.MustCompile(`作者|简介|内容简介|目录|序言|前言`)
var trueChapterHeader = regexp.MustCompile(`第[0-9一二三四五六七八九十百千零〇]+章|(?i)Chapter\s+[0-9]+|^\s*【`)
var shortLineKeyword = regexp.MustCompile(`章|节|Chapter`)
var hasDigitOrNumeral = regexp.MustCompile(`[0-9一二三四五六七八九十百千零〇]`)
var sentencePunct = regexp.MustCompile(`[，。！？；,.!?;]`)

// SplitByChapters walks text line by line, classifying each line as a
// chapter header, discardable front matter, or body content.
func SplitByChapters(text string) []Chapter {
	lines := strings.Split(text, "\n")

	type headerHit struct {
		lineIdx int
		title   string
	}
	var headers []headerHit
	skipping := true

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if rulerPattern.MatchString(trimmed) {
			continue
		}
		if len(trimmed) < 20 && digitPunctOnly.MatchString(trimmed) {
			continue
		}
		if i < 20 && metadataKeywords.MatchString(trimmed) {
			continue
		}

		isHeader := matchesHeaderPattern(trimmed)
		if !isHeader && len([]rune(trimmed)) < 50 && shortLineKeyword.MatchString(trimmed) && hasDigitOrNumeral.MatchString(trimmed) {
			if !sentencePunct.MatchString(trimmed) || strings.Contains(trimmed, "【") {
				isHeader = true
			}
		}

		if !isHeader {
			continue
		}

		if skipping {
			if trueChapterHeader.MatchString(trimmed) {
				skipping = false
			} else {
				continue
			}
		}

		headers = append(headers, headerHit{lineIdx: i, title: trimmed})
	}

	if len(headers) == 0 {
		full := strings.TrimSpace(text)
		return []Chapter{{Index: 1, Title: "全文", Content: full, Start: 0, End: len([]rune(text))}}
	}

	lineStarts := make([]int, len(lines)+1)
	for i, line := range lines {
		lineStarts[i+1] = lineStarts[i] + len([]rune(line)) + 1
	}

	chapters := make([]Chapter, 0, len(headers))
	for idx, h := range headers {
		endLine := len(lines)
		if idx+1 < len(headers) {
			endLine = headers[idx+1].lineIdx
		}
		bodyLines := lines[h.lineIdx:endLine]
		content := strings.TrimSpace(strings.Join(bodyLines, "\n"))
		chapters = append(chapters, Chapter{
			Index:   idx + 1,
			Title:   h.title,
			Content: content,
			Start:   lineStarts[h.lineIdx],
			End:     lineStarts[endLine] - 1,
		})
	}
	return chapters
}

func matchesHeaderPattern(line string) bool {
	for _, p := range headerPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// DetectChapters reports chapter boundaries without chapter content.
func DetectChapters(text string) ChapterSummary {
	chapters := SplitByChapters(text)
	entries := make([]ChapterSummaryEntry, 0, len(chapters))
	for _, c := range chapters {
		entries = append(entries, ChapterSummaryEntry{
			Index:  c.Index,
			Title:  c.Title,
			Length: len([]rune(c.Content)),
		})
	}
	hasChapters := len(chapters) > 1 || (len(chapters) == 1 && chapters[0].Title != "全文")
	return ChapterSummary{
		HasChapters:  hasChapters,
		ChapterCount: len(chapters),
		Chapters:     entries,
	}
}
