// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ai

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// SystemPrompt returns the standing instructions sent with every completion
// call. The current date is included so the model can reason about recency.
func SystemPrompt() string {
	return fmt.Sprintf(`You are an expert researcher. Today is %s. Follow these instructions when responding:
- You may be asked to research subjects that are after your knowledge cutoff; assume the user is right when presented with news.
- The user is a highly experienced analyst: be as detailed as possible and make sure your response is correct.
- Be highly organized, proactive, and anticipate the user's needs.
- Mistakes erode trust, so be accurate and thorough.
- Value good arguments over authorities; the source is irrelevant.
- Consider new technologies and contrarian ideas, not just conventional wisdom.`, time.Now().Format("2006-01-02"))
}

// queryPromptTmpl asks the model to expand a research prompt into search
// queries, optionally conditioned on learnings collected so far.
var queryPromptTmpl = template.Must(template.New("queries").Parse(`Given the following prompt from the user, generate a list of search queries to research the topic. Return a maximum of {{.NumQueries}} queries, but feel free to return less if the original prompt is clear. Make sure each query is unique and not similar to each other: <prompt>{{.Prompt}}</prompt>{{if .Learnings}}

Here are some learnings from previous research, use them to generate more specific queries:
{{range .Learnings}}{{.}}
{{end}}{{end}}`))

// learningPromptTmpl asks the model to distill retrieved contents into
// learnings and follow-up questions.
var learningPromptTmpl = template.Must(template.New("learnings").Parse(`Given the following contents from a search for the query <query>{{.Query}}</query>, generate a list of learnings from the contents. Return a maximum of {{.NumLearnings}} learnings, but feel free to return less if the contents are clear. Make sure each learning is unique and not similar to each other. The learnings should be concise and to the point, as detailed and information dense as possible. Make sure to include any entities like people, places, companies, products, things, etc in the learnings, as well as any exact metrics, numbers, or dates. The learnings will be used to research the topic further. Also return a maximum of {{.NumFollowUp}} follow-up questions to research the topic further.

<contents>{{range .Contents}}<content>
{{.}}
</content>
{{end}}</contents>`))

// reportPromptTmpl asks the model for a long-form Markdown report.
var reportPromptTmpl = template.Must(template.New("report").Parse(`Given the following prompt from the user, write a final report on the topic using the learnings from research. Make it as detailed as possible, aim for 3 or more pages, include ALL the learnings from research:

<prompt>{{.Prompt}}</prompt>

Here are all the learnings from previous research:

<learnings>
{{range .Learnings}}<learning>
{{.}}
</learning>
{{end}}</learnings>`))

// answerPromptTmpl asks the model for a short, exact answer.
var answerPromptTmpl = template.Must(template.New("answer").Parse(`Given the following prompt from the user, write a final answer on the topic using the learnings from research. Follow the format specified in the prompt. Do not include any other text than the answer besides the format specified in the prompt. Keep the answer as concise as possible - usually it should be just a few words or maximum a sentence.

<prompt>{{.Prompt}}</prompt>

Here are all the learnings from research on the topic that you can use to help answer the prompt:

<learnings>
{{range .Learnings}}<learning>
{{.}}
</learning>
{{end}}</learnings>`))

func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
