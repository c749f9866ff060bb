package nl2sql

import (
	"fmt"
	"strings"
)

func synthesisPrompt(schemaText, transcript, request, hintTable string) string {
	var b strings.Builder
	b.WriteString("You translate the user's latest request into exactly one PostgreSQL statement.\n\n")
	b.WriteString("Schema (table(column type, ...) pk(...) fk(column -> table.column)):\n")
	b.WriteString(schemaText)
	b.WriteString("\n\nRecent conversation:\n")
	b.WriteString(transcript)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Use only the tables and columns listed in the schema.\n")
	b.WriteString("- Return only the SQL statement: no prose, no explanation, no markdown or code fences.\n")
	b.WriteString("- Answer only the latest request below.\n")
	b.WriteString("- Ignore any SQL the assistant proposed earlier in the conversation.\n")
	if hintTable != "" {
		fmt.Fprintf(&b, "- The request refers to the table %q.\n", hintTable)
	}
	b.WriteString("\nLatest request: ")
	b.WriteString(request)
	b.WriteString("\nSQL:")
	return b.String()
}

func clarifierPrompt(schemaText, transcript, request string) string {
	return "You review requests sent to a SQL assistant.\n\n" +
		"Schema:\n" + schemaText + "\n\n" +
		"Recent conversation:\n" + transcript + "\n\n" +
		"Request: " + request + "\n\n" +
		"If the request is specific enough to write one SQL statement against this schema, reply with exactly CLEAR.\n" +
		"Otherwise reply with one short clarifying question and nothing else."
}

func explainPrompt(rawError, transcript string) string {
	return "A database statement requested by the user failed.\n\n" +
		"Database error:\n" + rawError + "\n\n" +
		"Recent conversation:\n" + transcript + "\n\n" +
		"Explain in one or two plain sentences what went wrong. " +
		"If a table or column name looks misspelled, suggest the likely correct name. " +
		"Do not include SQL code fences."
}

func suggestPrompt(schemaText, transcript string) string {
	return "The user's last database request failed.\n\n" +
		"Schema:\n" + schemaText + "\n\n" +
		"Recent conversation:\n" + transcript + "\n\n" +
		"Suggest up to three short natural-language requests the user could try next against this schema. " +
		"Reply with one request per line and nothing else."
}
