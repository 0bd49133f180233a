package conversation

import (
	"fmt"
	"strings"

	"github.com/pedroavv1914/zappi-chatbot/internal/menu"
)

// Fixed prompts.
const (
	msgAskItems          = "Ótimo! Por favor, digite os números dos itens que deseja pedir, separados por vírgula (ex: 1,4,5)."
	msgAttendant         = "Encaminhando você para um atendente. Por favor, aguarde."
	msgInvalidMenuChoice = "Opção inválida. Por favor, escolha 1, 2 ou 3."
	msgNoValidItems      = "Nenhum item válido foi selecionado. Por favor, digite os números dos itens."
	msgAskFulfillment    = "Pedido confirmado!\n\nComo você prefere?\n*Retirar* no local ou *Delivery*?"
	msgCancelled         = "Pedido cancelado. Voltando ao menu principal."
	msgInvalidDelivery   = "Opção inválida. Por favor, digite \"retirar\" ou \"delivery\"."
	msgAskFullName       = "Ótimo! Para o delivery, preciso de algumas informações. Por favor, digite seu nome completo:"
	msgAskPhone          = "Obrigado! Agora, por favor, digite seu telefone para contato:"
	msgAskAddress        = "Perfeito! Por último, digite seu endereço completo para entrega:"
	msgRestart           = "Desculpe, não entendi. Reiniciando atendimento."
)

// FormatPrice renders a price the way every summary shows it.
func FormatPrice(v float64) string {
	return fmt.Sprintf("R$ %.2f", v)
}

func welcomeMessage(displayName string) string {
	return fmt.Sprintf("🍕 Bem-vindo(a) à *%s*! 🍕\n\nComo posso ajudar?\n\n"+
		"*1. Ver Cardápio* 📋\n*2. Fazer Pedido* 📝\n*3. Falar com um atendente* 🧑‍💼", displayName)
}

func catalogMessage(cat *menu.Catalog) string {
	var b strings.Builder
	b.WriteString("⭐ *Nosso Cardápio* ⭐\n\n")
	b.WriteString("🍕 *Pizzas*\n")
	for _, p := range cat.Pizzas {
		fmt.Fprintf(&b, "*%d. %s* - %s\n_Ingredientes: %s_\n\n", p.ID, p.Name, FormatPrice(p.Price), p.Ingredients)
	}
	b.WriteString("🥤 *Bebidas*\n")
	for _, d := range cat.Drinks {
		fmt.Fprintf(&b, "*%d. %s* - %s\n", d.ID, d.Name, FormatPrice(d.Price))
	}
	b.WriteString("\nPara fazer um pedido, escolha a opção *2* no menu principal.")
	return b.String()
}

func writeItems(b *strings.Builder, items []menu.Item) {
	for _, it := range items {
		fmt.Fprintf(b, "- %s (%s)\n", it.Name, FormatPrice(it.Price))
	}
	fmt.Fprintf(b, "\n💰 *Total:* %s\n", FormatPrice(total(items)))
}

func cartMessage(items []menu.Item) string {
	var b strings.Builder
	b.WriteString("🛒 *Seu Pedido:* 🛒\n\n")
	writeItems(&b, items)
	b.WriteString("✅ Para confirmar, digite *Sim*. Para cancelar, digite *Não*.\n" +
		"Se quiser adicionar mais itens, digite os números novamente.")
	return b.String()
}

func pickupMessage(items []menu.Item) string {
	var b strings.Builder
	b.WriteString("✅ *Pedido Confirmado para Retirada!* ✅\n\n*Seu Pedido:*\n")
	writeItems(&b, items)
	b.WriteString("\nAgradecemos a preferência! Seu pedido será preparado para retirada.")
	return b.String()
}

func deliveryMessage(s Session) string {
	var b strings.Builder
	b.WriteString("✅ *Pedido Confirmado para Delivery!* ✅\n\n*Seu Pedido:*\n")
	writeItems(&b, s.Order)
	b.WriteString("\n*Dados para Entrega:*\n")
	fmt.Fprintf(&b, "Nome: %s\nTelefone: %s\nEndereço: %s\n\n", s.FullName, s.Phone, s.Address)
	b.WriteString("Agradecemos a preferência! Seu pedido será entregue em breve.")
	return b.String()
}
