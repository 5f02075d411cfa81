package llm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/figmaqa/internal/models"
)

func frameSummary(n int, texts int) []models.FrameSummary {
	frames := make([]models.FrameSummary, 0, n)
	for i := 0; i < n; i++ {
		f := models.FrameSummary{
			FrameName: fmt.Sprintf("Frame %d", i),
			NodeID:    fmt.Sprintf("1:%d", i),
			ImageURL:  fmt.Sprintf("https://img/%d", i),
		}
		for j := 0; j < texts; j++ {
			f.Texts = append(f.Texts, fmt.Sprintf("texto-%d-%d", i, j))
			f.Elements = append(f.Elements, models.Element{Type: "button", Name: fmt.Sprintf("btn-%d-%d", i, j)})
		}
		frames = append(frames, f)
	}
	return frames
}

func TestBuildPrompt_FrameVariant(t *testing.T) {
	summary := &models.UnitSummary{
		Variant:  models.LevelFrame,
		FileKey:  "FILE",
		PageName: "Home",
		Frames:   frameSummary(1, 250),
	}

	p := BuildPrompt(summary, 12)
	assert.Contains(t, p.Text, "Archivo: FILE")
	assert.Contains(t, p.Text, "Frame: Frame 0 (id 1:0)")
	assert.Contains(t, p.Text, "- texto-0-199\n")
	assert.NotContains(t, p.Text, "texto-0-200")
	assert.Contains(t, p.Text, "- button: btn-0-99\n")
	assert.NotContains(t, p.Text, "btn-0-100")
	require.Len(t, p.Images, 1)
	assert.Equal(t, "https://img/0", p.Images[0].URL)
}

func TestBuildPrompt_GroupVariantSamplesFrames(t *testing.T) {
	summary := &models.UnitSummary{
		Variant:   models.LevelGroup,
		FileKey:   "FILE",
		PageName:  "Checkout",
		UnitLabel: "pago",
		Frames:    frameSummary(5, 10),
	}

	p := BuildPrompt(summary, 3)
	assert.Contains(t, p.Text, "Grupo objetivo: pago")
	assert.Contains(t, p.Text, "Frame: Frame 2")
	assert.NotContains(t, p.Text, "Frame: Frame 3")
	assert.Contains(t, p.Text, "texto-0-5")
	assert.NotContains(t, p.Text, "texto-0-6")
	assert.Contains(t, p.Text, "button:btn-0-7")
	assert.NotContains(t, p.Text, "btn-0-8")

	require.Len(t, p.Images, 3)
	assert.Equal(t, "Imagen del frame: Frame 1", p.Images[1].Label)
}

func TestBuildPrompt_SectionAndPageObjectives(t *testing.T) {
	section := BuildPrompt(&models.UnitSummary{Variant: models.LevelSection, UnitLabel: "Onboarding", Frames: frameSummary(1, 1)}, 12)
	assert.Contains(t, section.Text, "Sección objetivo: Onboarding")

	page := BuildPrompt(&models.UnitSummary{Variant: models.LevelPage, PageName: "Home", Frames: frameSummary(2, 1)}, 12)
	assert.True(t, strings.Contains(page.Text, "página completa"))
	assert.NotContains(t, page.Text, "Grupo objetivo")
}

func TestBuildPrompt_SkipsFramesWithoutImage(t *testing.T) {
	frames := frameSummary(2, 1)
	frames[0].ImageURL = ""
	p := BuildPrompt(&models.UnitSummary{Variant: models.LevelGroup, Frames: frames}, 12)
	require.Len(t, p.Images, 1)
	assert.Equal(t, "https://img/1", p.Images[0].URL)
}
