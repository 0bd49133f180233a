package dashboard

import (
	"embed"
	"html/template"

	"github.com/pedroavv1914/zappi-chatbot/internal/chat"
)

//go:embed templates/*.html
var templatesFS embed.FS

// refreshSeconds is how often the status page reloads itself.
const refreshSeconds = 15

var stateLabels = map[string]string{
	chat.StateStarting:        "Iniciando",
	chat.StateConnected:       "Conectado",
	chat.StateAwaitingPairing: "Aguardando pareamento",
	chat.StateRestarting:      "Reiniciando",
	chat.StateFailed:          "Falhou",
}

var templateFuncs = template.FuncMap{
	"stateLabel": func(state string) string {
		if label, ok := stateLabels[state]; ok {
			return label
		}
		return state
	},
}
