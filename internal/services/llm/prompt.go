package llm

import (
	"fmt"
	"strings"

	"github.com/ternarybob/figmaqa/internal/models"
)

// SystemPrompt frames the model as a QA lead producing a case matrix in JSON
const SystemPrompt = "Actúas como líder de QA y debes producir una matriz exhaustiva de casos de prueba funcionales y no funcionales a partir de pantallas de diseño (textos, componentes e imágenes). " +
	"Responde solo con JSON válido con esta forma: {\"casos\": [ { ... } ]}. " +
	"Cada caso incluye todos estos campos: id, frame, feature, objetivo, precondiciones (lista), pasos (lista de al menos 6 pasos concretos con datos), datos_prueba (objeto con valores realistas), resultado_esperado (verificable), negativo (lista de escenarios adversos), bordes (lista de límites y estados extremos), accesibilidad (lista: WCAG, teclado, lectores de pantalla), prioridad, severidad, dispositivo, dependencias (lista) y observaciones. " +
	"Cubre el flujo principal, validaciones de formularios, estados vacíos y de error, permisos, navegación entre pantallas, fallos de red, internacionalización y diseño responsive. " +
	"Usa los textos y componentes detectados en lugar de pasos genéricos, y genera entre 8 y 15 casos por funcionalidad. Si falta información, asume convenciones razonables y anótalas en observaciones. " +
	"No escribas nada fuera del JSON."

const (
	frameTextLimit     = 200
	frameElementLimit  = 100
	sampleTextLimit    = 6
	sampleElementLimit = 8
)

// ImageRef is an image to attach to a prompt, before download
type ImageRef struct {
	Label string
	URL   string
}

// Prompt is the user-side content for one generation call
type Prompt struct {
	Text   string
	Images []ImageRef
}

// BuildPrompt assembles the prompt for a unit summary. The frame variant lists
// every text and element of its single frame; the other variants list up to
// imagesPerUnit frames with a sample of each.
func BuildPrompt(summary *models.UnitSummary, imagesPerUnit int) Prompt {
	if imagesPerUnit <= 0 {
		imagesPerUnit = len(summary.Frames)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Archivo: %s\n", summary.FileKey)
	fmt.Fprintf(&b, "Página: %s\n", summary.PageName)

	if summary.Variant == models.LevelFrame {
		return buildFramePrompt(&b, summary)
	}

	switch summary.Variant {
	case models.LevelGroup:
		fmt.Fprintf(&b, "Grupo objetivo: %s\n", summary.UnitLabel)
	case models.LevelSection:
		fmt.Fprintf(&b, "Sección objetivo: %s\n", summary.UnitLabel)
	}
	b.WriteString("\nFrames incluidos:\n")

	frames := summary.Frames
	if len(frames) > imagesPerUnit {
		frames = frames[:imagesPerUnit]
	}

	prompt := Prompt{}
	for _, f := range frames {
		fmt.Fprintf(&b, "- Frame: %s (id %s)\n", f.FrameName, f.NodeID)
		if len(f.Elements) > 0 {
			fmt.Fprintf(&b, "  · Componentes: %s\n", joinElements(f.Elements, sampleElementLimit))
		}
		if len(f.Texts) > 0 {
			fmt.Fprintf(&b, "  · Textos: %s\n", strings.Join(limit(f.Texts, sampleTextLimit), ", "))
		}
		if f.ImageURL != "" {
			prompt.Images = append(prompt.Images, ImageRef{Label: "Imagen del frame: " + f.FrameName, URL: f.ImageURL})
		}
	}

	b.WriteString("\n")
	switch summary.Variant {
	case models.LevelPage:
		b.WriteString("Objetivo: genera casos de prueba funcionales para la página completa, tratando los frames como una sola funcionalidad. Consolida los casos repetidos entre frames.")
	case models.LevelSection:
		b.WriteString("Objetivo: genera casos de prueba funcionales para la sección indicada, consolidando el comportamiento común de sus frames. Evita casos idénticos por frame.")
	default:
		b.WriteString("Objetivo: genera casos de prueba funcionales para el grupo indicado, consolidando validaciones comunes entre frames. Evita casos idénticos por frame.")
	}

	prompt.Text = b.String()
	return prompt
}

func buildFramePrompt(b *strings.Builder, summary *models.UnitSummary) Prompt {
	prompt := Prompt{}
	if len(summary.Frames) == 0 {
		b.WriteString("\nObjetivo: genera casos de prueba funcionales para este frame.")
		prompt.Text = b.String()
		return prompt
	}

	f := summary.Frames[0]
	fmt.Fprintf(b, "Frame: %s (id %s)\n\n", f.FrameName, f.NodeID)
	b.WriteString("Textos detectados:\n")
	for _, t := range limit(f.Texts, frameTextLimit) {
		fmt.Fprintf(b, "- %s\n", t)
	}
	b.WriteString("\nControles detectados:\n")
	for _, e := range limitElements(f.Elements, frameElementLimit) {
		fmt.Fprintf(b, "- %s: %s\n", e.Type, e.Name)
	}
	b.WriteString("\nObjetivo: genera casos de prueba funcionales para este frame con flujos completos y validaciones realistas.")

	prompt.Text = b.String()
	if f.ImageURL != "" {
		prompt.Images = []ImageRef{{URL: f.ImageURL}}
	}
	return prompt
}

func joinElements(elements []models.Element, n int) string {
	parts := make([]string, 0, n)
	for _, e := range limitElements(elements, n) {
		parts = append(parts, e.Type+":"+e.Name)
	}
	return strings.Join(parts, ", ")
}

func limit(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func limitElements(items []models.Element, n int) []models.Element {
	if len(items) > n {
		return items[:n]
	}
	return items
}
