package responder

import (
	"context"
	"errors"
	"testing"

	"agrosmi/app/client/llm/llmtest"
	"agrosmi/app/service/conversation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func waterDefinition() Definition {
	return Definition{
		ID:           "water",
		Description:  "riego",
		Instructions: "Eres el especialista hídrico del usuario {user_id}. Indicaciones: {hint}",
		Fallback:     "Error al analizar gestión hídrica.",
	}
}

func TestAgentRespond(t *testing.T) {
	model := llmtest.New(llmtest.Text("  Riega 20 mm esta semana.  "))
	agent := NewAgent(waterDefinition(), &Executor{Model: model, Capabilities: newPriceSet(t)})

	st := conversation.NewState("u7", nil, "¿Cuánto riego mi maíz?", nil)
	st.Append(conversation.NewMessage("production", conversation.Text("El maíz está en floración.")))
	st.SetHint("Enfócate en la parcela Norte")

	msg := agent.Respond(context.Background(), st)
	assert.Equal(t, "water", msg.Sender)
	assert.Equal(t, "Riega 20 mm esta semana.", msg.Content.Text)

	messages := model.Calls()[0].Messages
	require.Len(t, messages, 3)

	assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
	system := llmtest.Texts(messages[0])
	assert.Contains(t, system, "usuario u7")
	assert.Contains(t, system, "Enfócate en la parcela Norte")

	assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, messages[2].Role)
	assert.Equal(t, "[production] El maíz está en floración.", llmtest.Texts(messages[2]))
}

func TestAgentWithoutHint(t *testing.T) {
	model := llmtest.New(llmtest.Text("ok"))
	agent := NewAgent(waterDefinition(), &Executor{Model: model, Capabilities: newPriceSet(t)})

	agent.Respond(context.Background(), conversation.NewState("u7", nil, "hola", nil))

	assert.Contains(t, llmtest.Texts(model.Calls()[0].Messages[0]), "Sin indicaciones adicionales")
}

func TestAgentFallback(t *testing.T) {
	tests := map[string]*llmtest.Model{
		"model error":  llmtest.New(llmtest.Fail(errors.New("boom"))),
		"empty answer": llmtest.New(llmtest.Text("")),
	}

	for name, model := range tests {
		t.Run(name, func(t *testing.T) {
			agent := NewAgent(waterDefinition(), &Executor{Model: model, Capabilities: newPriceSet(t)})

			msg := agent.Respond(context.Background(), conversation.NewState("u7", nil, "hola", nil))
			assert.Equal(t, "Error al analizar gestión hídrica.", msg.Content.Text)
		})
	}
}

func TestAgentDegradedAfterError(t *testing.T) {
	model := llmtest.New(
		llmtest.ToolCall("c1", "get_market_price", `{"product_name":"maíz"}`),
		llmtest.Fail(errors.New("boom")),
	)
	agent := NewAgent(waterDefinition(), &Executor{Model: model, Capabilities: newPriceSet(t)})

	msg := agent.Respond(context.Background(), conversation.NewState("u7", nil, "precio del maíz", nil))
	assert.Contains(t, msg.Content.Text, "get_market_price")
	require.Len(t, msg.ToolTrace, 1)
}

func TestTranscriptSkipsEmpty(t *testing.T) {
	st := conversation.NewState("u7", nil, "mira", &conversation.Attachment{Data: []byte("img"), MIMEType: "image/png"})
	st.Append(conversation.NewMessage("water", conversation.Text("")))

	messages := transcript(st.Messages())
	require.Len(t, messages, 1)
	assert.Equal(t, "mira [imagen adjunta]", llmtest.Texts(messages[0]))
}

func TestAgentHintWithPlaceholders(t *testing.T) {
	model := llmtest.New(llmtest.Text("ok"))
	agent := NewAgent(waterDefinition(), &Executor{Model: model, Capabilities: newPriceSet(t)})

	st := conversation.NewState("u7", nil, "hola", nil)
	st.SetHint("la parcela {user_id}")
	agent.Respond(context.Background(), st)

	system := llmtest.Texts(model.Calls()[0].Messages[0])
	assert.Contains(t, system, "Indicaciones: la parcela {user_id}")
	assert.Contains(t, system, "usuario u7")
}
