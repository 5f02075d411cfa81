package export

import (
	"fmt"
	"strings"

	"github.com/ternarybob/figmaqa/internal/models"
)

// Markdown renders the bundles as a markdown report, one section per bundle
func Markdown(bundles []models.CasesBundle, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(title))

	total := 0
	for _, bundle := range bundles {
		total += len(bundle.Cases)
	}
	if total == 0 {
		b.WriteString(EmptyMessage + "\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Total de casos: **%d**\n\n", total)

	for _, bundle := range bundles {
		if len(bundle.Cases) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s · %s\n\n", escape(bundle.PageName), escape(bundle.FrameName))
		for _, c := range bundle.Cases {
			writeCase(&b, c)
		}
	}
	return b.String()
}

func writeCase(b *strings.Builder, c models.TestCase) {
	heading := c.ID
	if c.Feature != "" {
		heading = strings.TrimSpace(heading + " " + c.Feature)
	}
	if heading == "" {
		heading = "Caso"
	}
	fmt.Fprintf(b, "### %s\n\n", escape(heading))

	field(b, "Objetivo", c.Objetivo)
	field(b, "Prioridad", c.Prioridad)
	field(b, "Severidad", c.Severidad)
	list(b, "Precondiciones", c.Precondiciones)
	list(b, "Pasos", c.Pasos)
	field(b, "Datos de prueba", formatTestData(c.DatosPrueba))
	field(b, "Resultado esperado", c.ResultadoEsperado)
	list(b, "Casos negativos", c.Negativo)
	list(b, "Bordes", c.Bordes)
	list(b, "Accesibilidad", c.Accesibilidad)
	field(b, "Dispositivo/Resolución", c.Dispositivo)
	list(b, "Dependencias", c.Dependencias)
	field(b, "Observaciones", c.Observaciones)
}

func field(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "**%s:** %s\n\n", label, escape(value))
}

func list(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", escape(item))
	}
	b.WriteString("\n")
}

var mdEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"#", "\\#",
	"<", "&lt;",
	">", "&gt;",
	"\n", " ",
)

func escape(s string) string {
	return mdEscaper.Replace(s)
}
