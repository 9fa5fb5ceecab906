package service

import "fmt"

const reorderTemplate = `Process the text below according to its relation to the question.

Question:
%s

Text:
%s

Requirements:
1. Delete everything in the text that is not relevant to the question.
2. Order what remains by relevance to the question, most relevant first.
3. Do not change, polish or add to any of the remaining content.
4. Return only the processed content, with no explanation, comment or heading such as "Here is the reordered content".
5. Do not return the content in its original order.`

const summaryTemplate = `Summarize the text below in no more than %d characters. Return only the summary: no original text, no explanation, no comments.

Text:
%s`

const supplementTemplate = `Using the reference answer below, answer the question in no more than %d characters, without any opening or closing remarks. If the reference answer is only weakly related to the question, write a new answer centered on the question instead.

Reference answer:
%s

Question:
%s`

func reorderPrompt(query, text string) string {
	return fmt.Sprintf(reorderTemplate, query, text)
}

func summaryPrompt(text string, limit int) string {
	return fmt.Sprintf(summaryTemplate, limit, text)
}

func supplementPrompt(query, text string, limit int) string {
	return fmt.Sprintf(supplementTemplate, limit, text, query)
}
