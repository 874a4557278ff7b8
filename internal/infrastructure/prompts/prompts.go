// Package prompts builds the message sequences and response schemas for
// every structured call the pipeline makes. Keeping them in one place keeps
// the usecases free of prompt text.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"browser-pilot/internal/domain/entity"
)

const observeSystem = `You are grounding natural-language instructions against a snapshot of a web page.
The snapshot lists elements as lines of the form "[id] <tag> (role) description".
Select the elements that match the instruction. Return an empty list when nothing matches.
Never invent element ids: only ids present in the snapshot are valid.`

const observeActSuffix = `
For each selected element also choose exactly one interaction method from this set: %s.
Put the method's inputs into "arguments" in order (e.g. the text for fill/type, the option label for select, the key name for press).`

const extractSystem = `You extract structured data from a slice of a web page.
Only use information present in the given slice. Leave fields you cannot fill empty rather than guessing.
Your answer must conform to the requested JSON schema.`

const refineSystem = `You merge freshly extracted data into a previously accumulated result under the same JSON schema.
Keep everything already extracted unless the new data clearly supersedes it. Do not duplicate entries that
appear in both (pages are chunked with overlap). Return the full merged result.`

const metadataSystem = `You judge extraction progress. Given the original instruction and the accumulated result,
decide whether the instruction is fully satisfied. Answer with a short progress note and a completed flag.
Only set completed=true when no further page content could add required data.`

const planSystem = `You control a browser step by step to accomplish a user goal.
Each turn, pick exactly one tool:
- "act": perform one interaction, described in "instruction" (e.g. "click the login button")
- "extract": pull data off the current page, described in "instruction"
- "observe": list elements matching "instruction" without interacting
- "navigate": go to "url"
- "done": the goal is accomplished; put the final answer in "answer"
Prefer small, single-purpose steps. If a step failed, try a different approach rather than repeating it.`

func ObserveMessages(instruction, treeText, pageText string, withAction bool) []entity.Message {
	system := observeSystem
	if withAction {
		verbs := make([]string, 0, len(entity.InteractionMethods()))
		for _, m := range entity.InteractionMethods() {
			verbs = append(verbs, string(m))
		}
		system += fmt.Sprintf(observeActSuffix, strings.Join(verbs, ", "))
	}

	var user strings.Builder
	user.WriteString("Page snapshot:\n")
	user.WriteString(treeText)
	if pageText != "" {
		user.WriteString("\n\nPage text context:\n")
		user.WriteString(pageText)
	}
	user.WriteString("\n\nInstruction: ")
	user.WriteString(instruction)

	return []entity.Message{
		{Role: entity.RoleSystem, Content: system},
		{Role: entity.RoleUser, Content: user.String()},
	}
}

func ObserveSchema(withAction bool) *entity.ResponseSchema {
	item := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"elementId":   map[string]interface{}{"type": "integer"},
			"description": map[string]interface{}{"type": "string"},
		},
		"required":             []string{"elementId", "description"},
		"additionalProperties": false,
	}
	name := "observe_result"
	if withAction {
		props := item["properties"].(map[string]interface{})
		props["method"] = map[string]interface{}{"type": "string"}
		props["arguments"] = map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		}
		item["required"] = []string{"elementId", "description", "method", "arguments"}
		name = "observe_act_result"
	}
	return &entity.ResponseSchema{
		Name: name,
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"elements": map[string]interface{}{
					"type":  "array",
					"items": item,
				},
			},
			"required":             []string{"elements"},
			"additionalProperties": false,
		},
	}
}

func ExtractChunkMessages(instruction string, chunk entity.Chunk, chunkTotal int) []entity.Message {
	user := fmt.Sprintf("Page slice %d of %d:\n%s\n\nInstruction: %s",
		chunk.Index+1, chunkTotal, chunk.Text, instruction)
	return []entity.Message{
		{Role: entity.RoleSystem, Content: extractSystem},
		{Role: entity.RoleUser, Content: user},
	}
}

func RefineMessages(instruction string, accumulated, partial json.RawMessage) []entity.Message {
	user := fmt.Sprintf("Instruction: %s\n\nAccumulated result so far:\n%s\n\nNewly extracted from the latest slice:\n%s",
		instruction, string(accumulated), string(partial))
	return []entity.Message{
		{Role: entity.RoleSystem, Content: refineSystem},
		{Role: entity.RoleUser, Content: user},
	}
}

func MetadataMessages(instruction string, accumulated json.RawMessage, chunkIndex, chunkTotal int) []entity.Message {
	user := fmt.Sprintf("Instruction: %s\n\nAccumulated result after slice %d of %d:\n%s",
		instruction, chunkIndex+1, chunkTotal, string(accumulated))
	return []entity.Message{
		{Role: entity.RoleSystem, Content: metadataSystem},
		{Role: entity.RoleUser, Content: user},
	}
}

func MetadataSchema() *entity.ResponseSchema {
	return &entity.ResponseSchema{
		Name: "extraction_metadata",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"progress":  map[string]interface{}{"type": "string"},
				"completed": map[string]interface{}{"type": "boolean"},
			},
			"required":             []string{"progress", "completed"},
			"additionalProperties": false,
		},
	}
}

func PlanMessages(goal string, steps []entity.AgentStep, currentURL string, screenshot *entity.Screenshot) []entity.Message {
	var user strings.Builder
	fmt.Fprintf(&user, "Goal: %s\nCurrent URL: %s\n", goal, currentURL)
	if len(steps) == 0 {
		user.WriteString("\nNo steps taken yet.\n")
	} else {
		user.WriteString("\nSteps so far:\n")
		for _, s := range steps {
			fmt.Fprintf(&user, "%d. %s %q -> %s", s.Index, s.Tool, s.Instruction, s.Outcome)
			if s.Error != "" {
				fmt.Fprintf(&user, " (%s)", s.Error)
			}
			if s.Observation != "" {
				fmt.Fprintf(&user, ": %s", truncate(s.Observation, 400))
			}
			user.WriteString("\n")
		}
	}
	user.WriteString("\nChoose the next tool call.")

	msg := entity.Message{Role: entity.RoleUser, Content: user.String()}
	if screenshot != nil {
		msg.Images = []entity.ImageAttachment{{MIME: "image/" + screenshot.Format, Data: screenshot.Data}}
	}
	return []entity.Message{
		{Role: entity.RoleSystem, Content: planSystem},
		msg,
	}
}

func PlanSchema() *entity.ResponseSchema {
	return &entity.ResponseSchema{
		Name: "next_step",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"tool": map[string]interface{}{
					"type": "string",
					"enum": []string{"act", "extract", "observe", "navigate", "done"},
				},
				"instruction": map[string]interface{}{"type": "string"},
				"url":         map[string]interface{}{"type": "string"},
				"answer":      map[string]interface{}{"type": "string"},
				"reasoning":   map[string]interface{}{"type": "string"},
			},
			"required":             []string{"tool", "reasoning"},
			"additionalProperties": false,
		},
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back off to a rune boundary so multi-byte text is never split.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
