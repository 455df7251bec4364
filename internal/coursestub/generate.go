package coursestub

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/cursory/internal/course"
)

// maxDraftTitleRunes は生成するタイトルの最大文字数。
const maxDraftTitleRunes = 60

// generateCourseDraft は入力からコースの下書きを決定的に組み立てる。同じ入力には同じ下書きを返す。
func generateCourseDraft(req course.GenerateCourseData) course.CreateCourseData {
	title := draftTitle(req.Description)
	slug := course.Slugify(title)
	if slug == "" {
		slug = "course-" + shortHash(req.Description)
	}

	return course.CreateCourseData{
		Title:       title,
		Description: fmt.Sprintf("%s\n\n到達目標: %s", strings.TrimSpace(req.Description), strings.TrimSpace(req.Objective)),
		Slug:        slug,
		Visibility:  course.VisibilityPrivate,
		Tags:        course.NormalizeTags([]string{req.Difficulty, "generated"}),
	}
}

// generateModuleDrafts は入力からモジュール案を決定的に組み立てる。
// トピックはカンマ区切りで解釈し、要求数に満たない場合は先頭から繰り返す。
// 順序はfirstOrderから連番にする。
func generateModuleDrafts(req course.GenerateModulesData, firstOrder int) []course.GeneratedModule {
	topics := splitTopics(req.SuggestedTopics)
	approach := strings.TrimSpace(req.Approach)

	modules := make([]course.GeneratedModule, req.NumberOfModules)
	for i := range modules {
		topic := topics[i%len(topics)]
		modules[i] = course.GeneratedModule{
			Title:       fmt.Sprintf("%d. %s", i+1, topic),
			Description: fmt.Sprintf("%sについて、%sで学ぶ。", topic, approach),
			Objectives: []string{
				fmt.Sprintf("%sの基本を説明できる", topic),
				fmt.Sprintf("%sを実践で使える", topic),
			},
			Order: firstOrder + i,
		}
	}
	return modules
}

// splitTopics はカンマ区切りのトピックを分割する。空の場合は全体を1つのトピックとする。
func splitTopics(s string) []string {
	var topics []string
	for _, t := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '、' }) {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		topics = []string{strings.TrimSpace(s)}
	}
	return topics
}

// draftTitle は説明文の最初の文をタイトルにする。長すぎる場合は切り詰める。
func draftTitle(description string) string {
	title := strings.TrimSpace(description)
	if i := strings.IndexAny(title, ".。\n"); i > 0 {
		title = strings.TrimSpace(title[:i])
	}
	if utf8.RuneCountInString(title) > maxDraftTitleRunes {
		title = strings.TrimSpace(string([]rune(title)[:maxDraftTitleRunes]))
	}
	return title
}

// shortHash は文字列のSHA-256の先頭8桁を返す。
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
