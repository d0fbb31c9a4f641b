package services

import (
	"strings"

	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/logger"
)

// Fallback prompts used when no PromptStore is configured or a template
// cannot be loaded. The file prompt store ships the same text as its
// on-disk defaults.
const (
	defaultRAGSystemPrompt = `你是一个智能读书助手，基于提供的书籍内容回答用户问题。请根据上下文信息准确回答，如果上下文中没有相关信息，请明确说明。

上下文：
{context}`

	defaultDirectChatPrompt = `你是一个智能读书助手。请友好、准确地回答用户的问题。`

	defaultTaskSummaryPrompt = `你是一位专业的书籍分析师，擅长提取书籍的核心内容和要点。
请分析以下书籍内容，识别主要观点（3-8个），解释关键概念，总结主要主题并给出整体结论。

标题：{title}
作者：{author}

内容：
{content}

请以JSON格式返回，字段为 main_points（字符串数组）、key_concepts（字符串数组）、themes（字符串数组）、conclusion（字符串）。`

	defaultTaskAuthorPrompt = `你是一位专业的文学研究者，擅长作者背景调查和分析。
请研究作者：{author}
相关书籍：{title}

基于已知信息进行合理推断，如果信息不足，请明确说明。
请以JSON格式返回，字段为 name、background、writing_style（字符串）和 notable_works（字符串数组）。`

	defaultTaskRecommendationPrompt = `你是一位资深的图书推荐专家。基于原书的主题、风格和内容，推荐5-8本相关书籍。

原书标题：{title}
原书作者：{author}

内容摘录：
{content}

请以JSON格式返回，字段为 recommendations（数组，每项包含 title、author、reason、similarity_score、category）、reasoning（字符串）、categories（字符串数组）。`
)

var fallbackPrompts = map[string]string{
	driven.PromptRAGSystem:          defaultRAGSystemPrompt,
	driven.PromptDirectChat:         defaultDirectChatPrompt,
	driven.PromptTaskSummary:        defaultTaskSummaryPrompt,
	driven.PromptTaskAuthor:         defaultTaskAuthorPrompt,
	driven.PromptTaskRecommendation: defaultTaskRecommendationPrompt,
}

// loadPrompt loads a prompt from the store, falling back to the built-in
// default if unavailable.
func loadPrompt(store driven.PromptStore, name string) string {
	if store != nil {
		tmpl, err := store.Load(name)
		if err == nil && tmpl != "" {
			return tmpl
		}
		if err != nil {
			logger.Debug("prompt %q: %v, using default", name, err)
		}
	}
	return fallbackPrompts[name]
}

// renderPrompt replaces {key} placeholders with values.
func renderPrompt(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// DefaultPrompts returns a copy of the built-in prompt templates keyed by
// prompt name.
func DefaultPrompts() map[string]string {
	out := make(map[string]string, len(fallbackPrompts))
	for k, v := range fallbackPrompts {
		out[k] = v
	}
	return out
}
