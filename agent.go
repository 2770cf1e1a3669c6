package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const maxModelRetries = 2

// Base delay between retry attempts; overridden in tests.
var retryBackoff = time.Second

const systemPromptFormat = `You are a helpful document drafting assistant. Your job is to update, edit, and improve the document based on the user's instructions.

RULES:
- When changing the text, ALWAYS call the update tool with the complete new document as new_content.
- NEVER print the document content in your chat reply.
- To save, call the save tool with a filename.
- After a tool call, keep your natural language reply short and conversational (e.g. "I've updated the draft.").

The current document is:
%s`

// Agent drives the drafting conversation. It owns the document, the toolbox
// and the growing history, and decides after each model response whether to
// execute tools, hand control back to the user, or end the session.
type Agent struct {
	provider Provider
	toolbox  *Toolbox
	doc      *Document
	history  []Message
	log      zerolog.Logger
}

func NewAgent(provider Provider, logger zerolog.Logger) (*Agent, error) {
	doc := NewDocument()
	tb := NewToolbox()
	if err := registerUpdateTool(tb, doc); err != nil {
		return nil, err
	}
	if err := registerSaveTool(tb, doc); err != nil {
		return nil, err
	}

	return &Agent{
		provider: provider,
		toolbox:  tb,
		doc:      doc,
		log:      logger,
	}, nil
}

// Document returns the draft owned by this agent.
func (a *Agent) Document() *Document {
	return a.doc
}

func (a *Agent) systemPrompt() string {
	return fmt.Sprintf(systemPromptFormat, a.doc.Read())
}

// Run feeds one user turn through the model and executes any requested tools,
// looping until the model settles on a plain text reply. Every tool result is
// routed back through the model so it can confirm what happened. The returned
// done flag is true once a save succeeded during this turn and the model had
// nothing further to ask; the session should not continue past that point.
func (a *Agent) Run(ctx context.Context, input string) (reply string, done bool, err error) {
	a.history = append(a.history, Message{Role: roleUser, Content: input})
	saved := false

	for {
		resp, err := a.chatWithRetry(ctx)
		if err != nil {
			return "", false, err
		}

		if resp.Kind == ResponseText {
			a.history = append(a.history, Message{Role: roleAssistant, Content: resp.Text})
			a.log.Debug().Bool("saved", saved).Msg("model settled on a text reply")
			return resp.Text, saved, nil
		}

		// Tool round: record the request turn, then exactly one result turn
		// per requested call, in request order, before calling the model
		// again.
		a.history = append(a.history, Message{
			Role:      roleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.Calls,
		})
		a.announceCalls(resp.Calls)

		results := a.toolbox.ExecuteBatch(resp.Calls)
		for i, result := range results {
			a.history = append(a.history, Message{
				Role:       roleTool,
				ToolCallID: result.ToolCallID,
				Content:    result.Content,
				IsError:    result.IsError,
			})
			a.showResult(result)
			a.log.Debug().
				Str("tool", resp.Calls[i].Name).
				Bool("error", result.IsError).
				Msg("tool executed")

			if resp.Calls[i].Name == "save" && !result.IsError {
				saved = true
			}
		}
	}
}

// chatWithRetry calls the provider, retrying a bounded number of times on
// transient failures before giving up.
func (a *Agent) chatWithRetry(ctx context.Context) (Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxModelRetries; attempt++ {
		if attempt > 0 {
			a.log.Debug().Int("attempt", attempt).Err(lastErr).Msg("retrying model call")
			time.Sleep(time.Duration(attempt) * retryBackoff)
		}

		resp, err := a.provider.Chat(ctx, a.systemPrompt(), a.history, a.toolbox.List())
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return Response{}, lastErr
}

func (a *Agent) announceCalls(calls []ToolCall) {
	for _, call := range calls {
		toolColor.Printf("\n➤ tool: %s(%s)\n", call.Name, truncateForDisplay(prettyPrint(call.Input)))
	}
}

func (a *Agent) showResult(result ToolResult) {
	if result.IsError {
		errorColor.Printf("➤ %s\n", result.Content)
		return
	}
	resultColor.Printf("➤ %s\n", truncateForDisplay(result.Content))
}
