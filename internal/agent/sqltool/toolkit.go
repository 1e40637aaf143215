// Package sqltool answers natural-language questions against a SQL
// database. A Toolkit exposes read-only database inspection helpers and a
// guarded query runner; Agent strings them together with an LLM to go from
// question to SQL to a natural-language answer.
package sqltool

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/threadwise/agentd/provider"
)

const systemPromptTemplate = `You are an agent designed to interact with a SQL database.
Given an input question, create a syntactically correct %s query to run, then look at the results of the query and return the answer.
Unless the user specifies a specific number of examples they wish to obtain, always limit your query to at most %d results.
You can order the results by a relevant column to return the most interesting examples in the database.
Never query for all the columns from a specific table, only ask for the relevant columns given the question.
DO NOT make any DML statements (INSERT, UPDATE, DELETE, DROP etc.) to the database.`

// writeKeywords are statement prefixes the query runner refuses outright.
var writeKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"truncate", "grant", "revoke", "merge", "replace",
}

// Toolkit wraps a database handle with read-only inspection and querying.
type Toolkit struct {
	db      *sql.DB
	dialect string
	topK    int
	maxRows int
}

// NewToolkit builds a Toolkit. dialect defaults to postgresql and topK to 10.
func NewToolkit(db *sql.DB, dialect string, topK int) *Toolkit {
	if dialect == "" {
		dialect = "postgresql"
	}
	if topK <= 0 {
		topK = 10
	}
	return &Toolkit{db: db, dialect: dialect, topK: topK, maxRows: 50}
}

// SystemPrompt renders the agent instructions for this toolkit's dialect.
func (t *Toolkit) SystemPrompt() string {
	return fmt.Sprintf(systemPromptTemplate, t.dialect, t.topK)
}

// ListTables returns the user-visible table names in the public schema.
func (t *Toolkit) ListTables(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, `
        SELECT table_name FROM information_schema.tables
        WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
        ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableSchema describes the columns of the given tables in a compact format
// suitable for prompting.
func (t *Toolkit) TableSchema(ctx context.Context, tables []string) (string, error) {
	var sb strings.Builder
	for _, table := range tables {
		rows, err := t.db.QueryContext(ctx, `
            SELECT column_name, data_type FROM information_schema.columns
            WHERE table_schema = 'public' AND table_name = $1
            ORDER BY ordinal_position`, table)
		if err != nil {
			return "", fmt.Errorf("describe %s: %w", table, err)
		}
		fmt.Fprintf(&sb, "Table %s:\n", table)
		for rows.Next() {
			var col, typ string
			if err := rows.Scan(&col, &typ); err != nil {
				rows.Close()
				return "", err
			}
			fmt.Fprintf(&sb, "  %s %s\n", col, typ)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return "", err
		}
		rows.Close()
	}
	return sb.String(), nil
}

// RunQuery executes a read-only query and renders the result set as text.
// Statements that modify data or schema are rejected before touching the
// database.
func (t *Toolkit) RunQuery(ctx context.Context, query string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(query))
	for _, kw := range writeKeywords {
		if strings.HasPrefix(trimmed, kw) {
			return "", fmt.Errorf("refusing to execute %s statement", strings.ToUpper(kw))
		}
	}

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(cols, " | "))
	sb.WriteByte('\n')

	count := 0
	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if count >= t.maxRows {
			fmt.Fprintf(&sb, "... (truncated at %d rows)\n", t.maxRows)
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		fields := make([]string, len(vals))
		for i, v := range vals {
			fields[i] = formatValue(v)
		}
		sb.WriteString(strings.Join(fields, " | "))
		sb.WriteByte('\n')
		count++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Answer is the full trace of one question handled by the Agent.
type Answer struct {
	Question string `json:"question"`
	Query    string `json:"query"`
	Result   string `json:"result"`
	Answer   string `json:"answer"`
}

// Agent turns natural-language questions into SQL and SQL results back into
// natural language.
type Agent struct {
	toolkit *Toolkit
	llm     provider.Provider
	logger  *log.Logger
}

// NewAgent builds an Agent over a toolkit and an LLM provider.
func NewAgent(toolkit *Toolkit, llm provider.Provider, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.New(log.Writer(), "[SQLAGENT] ", log.LstdFlags)
	}
	return &Agent{toolkit: toolkit, llm: llm, logger: logger}
}

// Ask answers a question in two LLM steps: generate a query from the schema,
// run it, then phrase the result as an answer.
func (a *Agent) Ask(ctx context.Context, question string) (Answer, error) {
	tables, err := a.toolkit.ListTables(ctx)
	if err != nil {
		return Answer{}, err
	}
	schema, err := a.toolkit.TableSchema(ctx, tables)
	if err != nil {
		return Answer{}, err
	}

	genPrompt := fmt.Sprintf(
		"Database schema:\n%s\nWrite a single SQL query answering the question. Respond with the query only, no explanation and no code fences.\nQuestion: %s",
		schema, question)
	query, err := a.llm.Completion(ctx, a.toolkit.SystemPrompt(), genPrompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generate query: %w", err)
	}
	query = stripFences(query)
	a.logger.Printf("question %q -> query %q", question, query)

	result, err := a.toolkit.RunQuery(ctx, query)
	if err != nil {
		return Answer{}, err
	}

	answerPrompt := fmt.Sprintf(
		"Given the following user question, corresponding SQL query, and SQL result, answer the user question.\n\nQuestion: %s\nSQL Query: %s\nSQL Result: %s",
		question, query, result)
	answer, err := a.llm.Completion(ctx, "", answerPrompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	return Answer{
		Question: question,
		Query:    query,
		Result:   result,
		Answer:   strings.TrimSpace(answer),
	}, nil
}

// stripFences removes a surrounding markdown code fence from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
