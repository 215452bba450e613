package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

// Completer is implemented by pkg/openai.Client.
type Completer interface {
	ChatCompletion(ctx context.Context, prompt string) (string, error)
}

// OpenAIAnnotator asks a chat model for a brief investment assessment.
type OpenAIAnnotator struct {
	client Completer
}

func NewOpenAIAnnotator(client Completer) *OpenAIAnnotator {
	return &OpenAIAnnotator{client: client}
}

func (a *OpenAIAnnotator) Annotate(ctx context.Context, l model.Listing) (string, error) {
	return a.client.ChatCompletion(ctx, buildPrompt(l))
}

func buildPrompt(l model.Listing) string {
	var b strings.Builder
	b.WriteString("Ты — эксперт по недвижимости Алматы.\n")
	b.WriteString("Проанализируй объявление:\n")
	fmt.Fprintf(&b, "title: %s\n", l.Title)
	fmt.Fprintf(&b, "price: %s\n", l.Price)
	fmt.Fprintf(&b, "residential_complex: %s\n", l.ResidentialComplex)
	fmt.Fprintf(&b, "description: %s\n\n", l.Description)
	b.WriteString("Выдай:\n")
	b.WriteString("1. 📊 Оценка цены (ниже/выше рынка)\n")
	b.WriteString("2. ⚠ Риск (низкий/средний/высокий)\n")
	b.WriteString("3. 💰 Инвестиционная привлекательность\n")
	b.WriteString("4. Краткий вывод (1–2 предложения)\n\n")
	b.WriteString("Ответ в сжатом формате.")
	return b.String()
}
